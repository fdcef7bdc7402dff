// Package document locates stylesheets inside HTML markup - linked,
// embedded and attribute-attached - and replaces them with self-contained
// embedded equivalents.
package document

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"sfb/asset"
	"sfb/css"
)

// Bundler rewrites HTML documents so every stylesheet they carry renders
// without further network access.
type Bundler struct {
	log       *zap.Logger
	retriever asset.Retriever
	embedder  *css.Embedder
}

// NewBundler creates a document bundler sharing one retrieval session
// between the HTML and CSS layers.
func NewBundler(retriever asset.Retriever, opts css.Options, log *zap.Logger) *Bundler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bundler{
		log:       log.Named("document"),
		retriever: retriever,
		embedder:  css.NewEmbedder(retriever, opts, log),
	}
}

// Bundle parses an HTML document, embeds every stylesheet occurrence and
// renders the result. base is the document's own URL.
func (b *Bundler) Bundle(base *url.URL, data []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to parse document: %w", err)
	}

	b.walk(doc, base)

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return nil, fmt.Errorf("unable to render document: %w", err)
	}
	return out.Bytes(), nil
}

func (b *Bundler) walk(n *html.Node, base *url.URL) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Link:
			if isStylesheetLink(n) {
				b.inlineLinkedStylesheet(n, base)
				// children of link are impossible, nothing more to do here
				return
			}
		case atom.Style:
			b.embedStyleElement(n, base)
			return
		}
		b.embedStyleAttribute(n, base)
	}

	// rewrites below may replace nodes, snapshot the child list first
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		b.walk(c, base)
	}
}

func isStylesheetLink(n *html.Node) bool {
	var rel, href string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "rel":
			rel = a.Val
		case "href":
			href = a.Val
		}
	}
	if href == "" {
		return false
	}
	for _, r := range strings.Fields(rel) {
		if strings.EqualFold(r, "stylesheet") {
			return true
		}
	}
	return false
}

// inlineLinkedStylesheet fetches a linked stylesheet, embeds it and replaces
// the <link> element with an equivalent <style> element. The link is left
// untouched when the stylesheet cannot be retrieved.
func (b *Bundler) inlineLinkedStylesheet(n *html.Node, base *url.URL) {
	var href string
	for _, a := range n.Attr {
		if strings.ToLower(a.Key) == "href" {
			href = strings.TrimSpace(a.Val)
		}
	}

	var target *url.URL
	var err error
	if base != nil {
		target, err = base.Parse(href)
	} else {
		target, err = url.Parse(href)
	}
	if err != nil {
		b.log.Warn("Unable to resolve stylesheet link", zap.String("href", href), zap.Error(err))
		return
	}

	res, err := b.retriever.Retrieve(base, target)
	if err != nil {
		b.log.Warn("Unable to retrieve linked stylesheet", zap.String("url", target.String()), zap.Error(err))
		return
	}

	embedded := b.embedder.Embed(res.FinalURL, asset.DecodeText(res.Data, res.Charset))

	style := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     "style",
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: embedded})

	parent := n.Parent
	parent.InsertBefore(style, n)
	parent.RemoveChild(n)

	b.log.Debug("Inlined linked stylesheet",
		zap.String("url", target.String()),
		zap.Int("bytes", len(embedded)))
}

func (b *Bundler) embedStyleElement(n *html.Node, base *url.URL) {
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return
	}

	embedded := b.embedder.Embed(base, text.String())

	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: embedded})
}

func (b *Bundler) embedStyleAttribute(n *html.Node, base *url.URL) {
	for i, a := range n.Attr {
		if strings.ToLower(a.Key) != "style" || strings.TrimSpace(a.Val) == "" {
			continue
		}
		n.Attr[i].Val = b.embedder.Embed(base, a.Val)
	}
}
