package book

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// deriveTableOfContents lists lesson titles with their section headings
// underneath, extracted from each lesson's Markdown.
func deriveTableOfContents(lessons []Lesson) []string {
	var toc []string
	mdParser := goldmark.DefaultParser()
	for _, lesson := range lessons {
		toc = append(toc, lesson.Title)
		source := []byte(lesson.Content)
		root := mdParser.Parse(text.NewReader(source))
		_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			if h, ok := n.(*ast.Heading); ok && h.Level == 2 {
				toc = append(toc, "  "+string(h.Text(source)))
			}
			return ast.WalkContinue, nil
		})
	}
	return toc
}
