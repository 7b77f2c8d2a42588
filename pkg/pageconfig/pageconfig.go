// Package pageconfig reads the configuration a server-rendered page hands
// to its scripts: endpoint addresses on "*-config" elements, the embedded
// CSRF field, and the initial state of actionable controls.
package pageconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Node is a flattened HTML element.
type Node struct {
	Tag     string
	ID      string
	Classes []string
	Attrs   map[string]string
	Text    string
}

// HasClass reports whether the element carries class.
func (n Node) HasClass(class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the named attribute, or "".
func (n Node) Attr(name string) string {
	return n.Attrs[name]
}

// Page is the parsed configuration of one page.
type Page struct {
	Base *url.URL

	// Configs holds every element whose id ends in "-config", by id.
	Configs map[string]Node

	// CSRFField is the value of the first csrfmiddlewaretoken input.
	CSRFField string

	// Nodes are the elements accepted by the match function, in document
	// order.
	Nodes []Node

	byID map[string]Node
}

// Matcher selects which elements are kept in Page.Nodes.
type Matcher func(n Node) bool

// MatchClasses keeps elements carrying any of classes.
func MatchClasses(classes ...string) Matcher {
	return func(n Node) bool {
		for _, c := range classes {
			if n.HasClass(c) {
				return true
			}
		}
		return false
	}
}

// MatchAny keeps elements accepted by any of ms.
func MatchAny(ms ...Matcher) Matcher {
	return func(n Node) bool {
		for _, m := range ms {
			if m != nil && m(n) {
				return true
			}
		}
		return false
	}
}

// Parse reads an HTML document. base resolves relative endpoint URLs and may
// be nil. match may be nil, in which case Nodes is empty.
func Parse(r io.Reader, base *url.URL, match Matcher) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("pageconfig: parse html: %w", err)
	}

	p := &Page{
		Base:    base,
		Configs: make(map[string]Node),
		byID:    make(map[string]Node),
	}
	p.walk(doc, match)
	return p, nil
}

func (p *Page) walk(n *html.Node, match Matcher) {
	if n.Type == html.ElementNode {
		node := flatten(n)
		if node.ID != "" {
			if _, dup := p.byID[node.ID]; !dup {
				p.byID[node.ID] = node
			}
			if strings.HasSuffix(node.ID, "-config") {
				p.Configs[node.ID] = node
			}
		}
		if node.Tag == "input" && node.Attr("name") == "csrfmiddlewaretoken" && p.CSRFField == "" {
			p.CSRFField = node.Attr("value")
		}
		if match != nil && match(node) {
			node.Text = strings.Join(strings.Fields(textOf(n)), " ")
			p.Nodes = append(p.Nodes, node)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, match)
	}
}

func flatten(n *html.Node) Node {
	node := Node{
		Tag:   n.Data,
		Attrs: make(map[string]string, len(n.Attr)),
	}
	for _, a := range n.Attr {
		node.Attrs[a.Key] = a.Val
		switch a.Key {
		case "id":
			node.ID = a.Val
		case "class":
			node.Classes = strings.Fields(a.Val)
		}
	}
	return node
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// ByID returns the element with the given id.
func (p *Page) ByID(id string) (Node, bool) {
	n, ok := p.byID[id]
	return n, ok
}

// Select returns the kept nodes carrying class.
func (p *Page) Select(class string) []Node {
	var out []Node
	for _, n := range p.Nodes {
		if n.HasClass(class) {
			out = append(out, n)
		}
	}
	return out
}

// Value returns a raw attribute of a config element.
func (p *Page) Value(configID, attr string) string {
	return p.Configs[configID].Attrs[attr]
}

// URL returns a config attribute resolved against the page URL. Missing or
// unparsable values yield "".
func (p *Page) URL(configID, attr string) string {
	raw := strings.TrimSpace(p.Value(configID, attr))
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if p.Base != nil {
		u = p.Base.ResolveReference(u)
	}
	return u.String()
}

// Fetch loads and parses a page. The client's cookie jar, if any, picks up
// the CSRF cookie the page sets.
func Fetch(ctx context.Context, client *http.Client, pageURL string, match Matcher) (*Page, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("pageconfig: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pageconfig: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pageconfig: fetch %s: status %d", pageURL, resp.StatusCode)
	}
	return Parse(resp.Body, resp.Request.URL, match)
}
