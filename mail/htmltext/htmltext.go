// Package htmltext converts HTML bodies to plain text.
package htmltext

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Separator is placed between text nodes.
const Separator = "\n"

// Flatten strips all markup from src and joins the remaining text nodes with Separator.
// Text inside script, style and template elements and comments is dropped.
func Flatten(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse html")
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, Separator), nil
}
