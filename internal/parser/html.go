package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"document-qa/internal/models"
)

func parseHTML(filePath string) (*models.Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return htmlToDocument(f)
}

func htmlToDocument(r io.Reader) (*models.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	b := newDocBuilder()
	var walk, block func(n *html.Node)

	// walk joins each run of inline children into one paragraph
	walk = func(n *html.Node) {
		var run strings.Builder
		flush := func() {
			b.add(models.LabelParagraph, collapseSpace(run.String()))
			run.Reset()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isInline(c) {
				run.WriteString(nodeText(c))
				continue
			}
			flush()
			block(c)
		}
		flush()
	}

	block = func(n *html.Node) {
		if n.Type != html.ElementNode && n.Type != html.DocumentNode {
			return
		}
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			b.outline.push(int(n.Data[1]-'0'), collapseSpace(nodeText(n)))
			return
		case atom.P, atom.Dt, atom.Dd, atom.Figcaption, atom.Caption:
			b.add(models.LabelParagraph, collapseSpace(nodeText(n)))
			return
		case atom.Li:
			b.add(models.LabelListItem, collapseSpace(nodeText(n)))
			return
		case atom.Pre:
			b.add(models.LabelCode, nodeText(n))
			return
		case atom.Table:
			b.add(models.LabelTable, tableText(htmlRows(n)))
			return
		}
		walk(n)
	}

	block(root)
	return b.doc, nil
}

var blockElements = map[atom.Atom]bool{
	atom.Html: true, atom.Head: true, atom.Body: true, atom.Main: true,
	atom.Div: true, atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.Nav: true, atom.Aside: true, atom.Form: true,
	atom.Fieldset: true, atom.Blockquote: true, atom.Figure: true, atom.Address: true,
	atom.Details: true, atom.Summary: true, atom.Center: true, atom.Hr: true,
	atom.Ul: true, atom.Ol: true, atom.Dl: true, atom.Li: true, atom.Dt: true, atom.Dd: true,
	atom.P: true, atom.Pre: true, atom.Table: true, atom.Caption: true, atom.Figcaption: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
		return !blockElements[n.DataAtom]
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br:
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func htmlRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, collapseSpace(nodeText(c)))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

// collapseSpace folds whitespace runs within each line into single spaces
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
