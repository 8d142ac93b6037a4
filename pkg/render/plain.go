package render

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText strips markdown formatting from text, keeping headings, paragraphs,
// list items and code blocks as plain lines.
func PlainText(markdown string) (string, error) {
	source := []byte(markdown)
	document := goldmark.DefaultParser().Parse(text.NewReader(source))

	b := &strings.Builder{}
	// items of one list, and of lists nested in it, are separated by a single newline
	var lastList *ast.List
	startBlock := func(list *ast.List) {
		if b.Len() > 0 {
			if list != nil && lastList != nil && sameListTree(list, lastList) {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		lastList = list
	}

	err := ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			startBlock(nil)
			writeInline(b, v, source)
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			startBlock(nil)
			lines := n.Lines()
			code := &strings.Builder{}
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				code.Write(segment.Value(source))
			}
			b.WriteString(strings.TrimRight(code.String(), "\n"))
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.TextBlock:
			if item, ok := n.Parent().(*ast.ListItem); ok && item.FirstChild() == n {
				list, _ := item.Parent().(*ast.List)
				startBlock(list)
				b.WriteString(listMarker(item))
			} else {
				startBlock(nil)
			}
			writeInline(b, n, source)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func sameListTree(a *ast.List, b *ast.List) bool {
	return rootList(a) == rootList(b)
}

func rootList(l *ast.List) *ast.List {
	for p := l.Parent(); p != nil; p = p.Parent() {
		if outer, ok := p.(*ast.List); ok {
			l = outer
		}
	}
	return l
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "- "
	}
	idx := list.Start
	for c := list.FirstChild(); c != nil && c != ast.Node(item); c = c.NextSibling() {
		idx++
	}
	return strconv.Itoa(idx) + ". "
}

func writeInline(b *strings.Builder, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(v.Value)
		default:
			writeInline(b, c, source)
		}
	}
}
