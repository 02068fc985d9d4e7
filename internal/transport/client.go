package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// MaxRedirects is the number of redirects followed before the last
// response is returned as is.
const MaxRedirects = 10

// checkProxyTimeout bounds the SOCKS5 handshake of CheckConnection.
const checkProxyTimeout = 2 * time.Second

// Client creates HTTP clients for crawling, optionally through a SOCKS5 proxy.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" form. Empty means direct.
	proxyAddress string

	dialer  proxy.ContextDialer
	timeout time.Duration
}

// NewClient creates a Client. An empty proxyAddress dials directly.
// The proxy is not contacted here; call CheckConnection to verify it.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	c := &Client{
		proxyAddress: proxyAddress,
		dialer:       &net.Dialer{Timeout: timeout},
		timeout:      timeout,
	}
	if proxyAddress == "" {
		return c, nil
	}

	if !isValidProxyAddress(proxyAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, proxyAddress)
	}
	d, err := proxy.SOCKS5("tcp", proxyAddress, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("SOCKS5 dialer does not support contexts")
	}
	c.dialer = cd
	return c, nil
}

// isValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, or "" for direct connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5CmdConnect   = 0x01
	socks5AddrTypeName = 0x03

	// socks5CheckHost is only named in the CONNECT request; any reply,
	// success or failure, proves the endpoint is a SOCKS5 proxy.
	socks5CheckHost = "example.com"
)

// CheckConnection verifies that the proxy speaks SOCKS5 without
// authentication and answers CONNECT requests. Direct clients are always OK.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if c.proxyAddress == "" {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: offer "no authentication" only.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}
	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeName, byte(len(socks5CheckHost))}
	req = append(req, socks5CheckHost...)
	req = append(req, 0x00, 80)
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// NewHTTPClient creates an HTTP client routed through the configured dialer.
// It keeps cookies across requests of a crawl and follows at most
// MaxRedirects redirects.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         c.dialer.DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if c.proxyAddress == "" {
		transport.Proxy = http.ProxyFromEnvironment
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // cookiejar.New never fails

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// HTTPClientWithConfig creates an HTTP client that adds cookie and
// headers to every request. cookie is a raw Cookie header value
// (e.g. "session_id=abc123").
func (c *Client) HTTPClientWithConfig(cookie string, headers map[string]string) *http.Client {
	client := c.NewHTTPClient()
	if cookie == "" && len(headers) == 0 {
		return client
	}
	client.Transport = &headerInjectingTransport{
		base:    client.Transport,
		cookie:  cookie,
		headers: headers,
	}
	return client
}

// headerInjectingTransport adds site headers and cookies to each request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
