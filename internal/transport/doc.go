// Package transport builds the HTTP clients linkscan fetches pages with.
//
// A Client produces *http.Client values with a per-request timeout, a
// redirect cap, a cookie jar scoped by the public suffix list and, when a
// proxy address is configured, a SOCKS5 dialer. Site configuration
// (cookie and extra headers) is injected by a RoundTripper so that every
// request, redirects included, carries it.
//
// EmbeddedTor starts a private Tor daemon through tornago and exposes its
// SOCKS address, so `linkscan crawl --tor` needs no external Tor install.
package transport
