package crawler

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// referenceAttrs lists, per element, the attributes that carry a reference.
// href and src are read on every listed element.
var referenceAttrs = map[string][]string{
	"a":      {"href", "src"},
	"img":    {"href", "src"},
	"link":   {"href", "src"},
	"script": {"href", "src"},
	"iframe": {"href", "src"},
	"form":   {"href", "src", "action"},
}

// skippedSchemes are references that never lead to a fetchable resource.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Parser extracts references from an HTML document.
type Parser struct {
	// baseURL is the URL of the page being parsed. A <base href> element
	// in the document replaces it.
	baseURL *url.URL
}

// ParseResult contains what was extracted from a page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Base is the URL that References must be resolved against.
	Base *url.URL

	// References are the raw attribute values in document order,
	// without duplicates.
	References []string
}

// NewParser creates a new parser for a page fetched from baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses UTF-8 HTML content.
// The HTML5 tokenizer recovers from malformed markup, so whatever it
// recovers is returned; content with no recognizable elements yields no
// references.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Base:       p.baseURL,
		References: make([]string, 0),
	}
	seen := make(map[string]struct{})
	baseSet := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "base":
				// Only the first <base href> counts.
				if href := strings.TrimSpace(getAttr(n, "href")); href != "" && !baseSet {
					if u, err := url.Parse(href); err == nil {
						result.Base = p.baseURL.ResolveReference(u)
						baseSet = true
					}
				}
			}

			for _, key := range referenceAttrs[n.Data] {
				ref, ok := cleanReference(getAttr(n, key))
				if !ok {
					continue
				}
				if _, dup := seen[ref]; dup {
					continue
				}
				seen[ref] = struct{}{}
				result.References = append(result.References, ref)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// cleanReference trims a raw attribute value and drops values that cannot
// lead to another resource.
func cleanReference(raw string) (string, bool) {
	ref := strings.TrimSpace(raw)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	lower := strings.ToLower(ref)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	return ref, true
}

// Extract returns the references of a fetched page.
// Only HTML documents are parsed; any other content type yields an empty
// result. The body is decoded to UTF-8 using the charset of the
// Content-Type header or of the document itself.
func Extract(resp *Response) (*ParseResult, error) {
	parser, err := NewParser(resp.URL)
	if err != nil {
		return nil, err
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body)
	}
	if !isHTML(contentType) {
		return &ParseResult{Base: parser.baseURL, References: make([]string, 0)}, nil
	}

	reader, err := charset.NewReader(bytes.NewReader(resp.Body), contentType)
	if err != nil {
		// Unknown charset: fall back to the raw bytes.
		reader = bytes.NewReader(resp.Body)
	}
	return parser.Parse(reader)
}

// isHTML reports whether a Content-Type value names an HTML document.
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
