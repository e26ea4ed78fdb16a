// Package render turns PRD Markdown into a sanitized HTML document tree.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ArticleID is the id of the element holding the rendered PRD.
const ArticleID = "prd-view"

// Renderer converts Markdown (GitHub flavoured) to sanitized HTML.
//
// Safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer creates a renderer with GFM tables, strikethrough and task lists.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	// Inline images in generated documents arrive as data URIs.
	policy.AllowDataURIImages()

	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
	}
}

// HTML renders markdown to a sanitized HTML fragment.
func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Document is a rendered page. Article is the element holding the PRD and
// Body is the page body that temporary export containers are attached to.
type Document struct {
	Markdown string
	Root     *html.Node
	Body     *html.Node
	Article  *html.Node
}

// Render renders markdown into a full page tree.
func (r *Renderer) Render(markdown string) (*Document, error) {
	fragment, err := r.HTML(markdown)
	if err != nil {
		return nil, err
	}

	page := `<!DOCTYPE html><html><head><meta charset="utf-8"><title>PRD</title></head><body><main><article id="` +
		ArticleID + `" class="prd">` + fragment + `</article></main></body></html>`
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered page: %w", err)
	}

	doc := &Document{
		Markdown: markdown,
		Root:     root,
		Body:     Find(root, func(n *html.Node) bool { return n.DataAtom == atom.Body }),
		Article:  Find(root, func(n *html.Node) bool { return Attr(n, "id") == ArticleID }),
	}
	if doc.Body == nil || doc.Article == nil {
		return nil, fmt.Errorf("rendered page is missing its body or article")
	}
	return doc, nil
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("failed to serialize html: %w", err)
		}
	}
	return buf.String(), nil
}

// Find returns the first node in document order, n included, matching pred.
func Find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// BodyOf walks up from n to its document and returns the document's body.
func BodyOf(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	if root.Type != html.DocumentNode {
		return nil
	}
	return Find(root, func(c *html.Node) bool { return c.DataAtom == atom.Body })
}

// Clone returns a detached deep copy of n.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// TextContent concatenates all text below n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Element builds a detached element with the given attributes, given as key/value pairs.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Text builds a detached text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
