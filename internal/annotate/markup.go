package annotate

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starford/ticker/internal/models"
	"github.com/starford/ticker/internal/reference"
)

const (
	markerClass = "marker"
	caret       = "^"
	hiddenClass = "sr-only"
	newTab      = "_blank"
)

var refKindIcon = map[models.Kind]string{
	models.KindWebsite:  "fa fa-globe",
	models.KindPDF:      "fa fa-file-pdf",
	models.KindVideo:    "fa fa-video",
	models.KindImage:    "fa fa-image",
	models.KindItemLink: "fa fa-link",
}

// parseFragment parses summary as body content and hangs the result under a
// detached <body> so every top-level node has a parent to be replaced in.
func parseFragment(summary string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(summary), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body, nil
}

func renderChildren(root *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// findMarkers returns marker spans in document order. A marker nested in
// another follows its enclosing marker and still takes a reference.
func findMarkers(root *html.Node) []*html.Node {
	var out []*html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		if isMarker(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(root)
	return out
}

func isMarker(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Span {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == markerClass {
					return true
				}
			}
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// label is the visible marker text; a caret anywhere blanks it.
func label(markerText string) string {
	if strings.Contains(markerText, caret) {
		return ""
	}
	return markerText
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a, Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func linkNode(ref *models.Reference, res reference.Resolution, markerText string) *html.Node {
	a := element(atom.A,
		attr("href", res.Href),
		attr("title", res.Title),
		attr("data-ref-type", string(ref.Kind)),
	)
	if !res.Local {
		a.Attr = append(a.Attr, attr("target", newTab))
	}
	if l := label(markerText); l != "" {
		a.AppendChild(text(l))
	}
	if icon, ok := refKindIcon[ref.Kind]; ok {
		sup := element(atom.Sup)
		sup.AppendChild(element(atom.I, attr("class", icon)))
		a.AppendChild(sup)
	}
	return a
}

func abbrNode(ref *models.Reference, res reference.Resolution, markerText string) *html.Node {
	visible := res.Title
	if visible == "" || strings.Contains(markerText, caret) {
		visible = label(markerText)
	}
	abbr := element(atom.Abbr, attr("title", ref.Text))
	if visible != "" {
		abbr.AppendChild(text(visible))
	}
	hidden := element(atom.Span, attr("class", hiddenClass))
	hidden.AppendChild(text("(" + ref.Text + ")"))
	abbr.AppendChild(hidden)
	return abbr
}

func replace(old, with *html.Node) {
	old.Parent.InsertBefore(with, old)
	old.Parent.RemoveChild(old)
}
