package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// visibleText walks the given nodes and collects their visible text,
// skipping script, style, noscript and template subtrees. Whitespace is
// collapsed to single spaces and the result is trimmed.
func visibleText(nodes []*html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		case html.TextNode:
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range nodes {
		walk(n)
	}

	return strings.Join(strings.Fields(buf.String()), " ")
}
