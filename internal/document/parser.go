package document

import (
	"strconv"
	"strings"
	"unicode"
)

// Parse converts constrained-dialect Markdown into the editable tree. It is a
// single-pass state machine over lines and never fails: unparsable constructs
// degrade to plain paragraph text.
func Parse(source string) *Tree {
	p := &parser{tree: &Tree{}}
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	// A trailing newline is a line terminator, not a blank line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for _, line := range lines {
		p.feed(line)
	}
	p.closeAll()
	return p.tree
}

type parserState int

const (
	stateNormal parserState = iota
	stateCodeBlock
)

type parser struct {
	tree  *Tree
	state parserState

	codeLang string
	codeBuf  []string

	list  *Block // open list, nil outside stateNormal lists
	table *Block // open table
}

func (p *parser) feed(line string) {
	if p.state == stateCodeBlock {
		if _, ok := fenceToken(line); ok {
			p.closeCode()
			return
		}
		p.codeBuf = append(p.codeBuf, line)
		return
	}

	if lang, ok := fenceToken(line); ok {
		p.closeList()
		p.closeTable()
		p.state = stateCodeBlock
		p.codeLang = lang
		p.codeBuf = nil
		return
	}

	trimmed := strings.TrimSpace(line)

	if level, content, ok := headingMarker(trimmed); ok {
		p.closeList()
		p.closeTable()
		h := newBlock(KindHeading, &Text{Value: FormatInline(content)})
		h.Attributes["level"] = strconv.Itoa(level)
		p.tree.Children = append(p.tree.Children, h)
		return
	}

	if strings.HasPrefix(trimmed, ">") {
		p.closeList()
		p.closeTable()
		content := strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))
		p.tree.Children = append(p.tree.Children, newBlock(KindBlockquote, &Text{Value: FormatInline(content)}))
		return
	}

	if kind, content, ok := listMarker(trimmed); ok {
		p.closeTable()
		// Items with no content, or holding only a leftover fence token,
		// are malformed generation output and get dropped.
		if content == "" || isBareFence(content) {
			return
		}
		if p.list == nil || p.list.Kind != kind {
			p.closeList()
			p.list = newBlock(kind)
			p.tree.Children = append(p.tree.Children, p.list)
		}
		item := newBlock(KindListItem, &Text{Value: FormatInline(content)})
		p.list.Children = append(p.list.Children, item)
		return
	}

	if cells, ok := tableRow(trimmed); ok {
		p.closeList()
		if isSeparatorRow(cells) {
			// Exists only to mark the header boundary in the source dialect.
			return
		}
		isHeader := p.table == nil || strings.Contains(trimmed, "**")
		if p.table == nil {
			p.table = newBlock(KindTable)
			p.tree.Children = append(p.tree.Children, p.table)
		}
		row := newBlock(KindTableRow)
		for _, cell := range cells {
			c := newBlock(KindTableCell, &Text{Value: FormatInline(cell)})
			if isHeader {
				c.Attributes["header"] = "true"
			}
			row.Children = append(row.Children, c)
		}
		p.table.Children = append(p.table.Children, row)
		return
	}

	if img, ok := imageNode(trimmed); ok {
		p.closeList()
		p.closeTable()
		p.tree.Children = append(p.tree.Children, img)
		return
	}

	if trimmed == "" {
		p.closeList()
		p.closeTable()
		p.tree.Children = append(p.tree.Children, newBlock(KindBreak))
		return
	}

	p.closeList()
	p.closeTable()
	p.tree.Children = append(p.tree.Children, newBlock(KindParagraph, &Text{Value: FormatInline(line)}))
}

func (p *parser) closeCode() {
	body := strings.Join(p.codeBuf, "\n")
	block := newBlock(KindCodeBlock, &Text{Value: EscapeMarkup(body)})
	if p.codeLang != "" {
		block.Attributes["language"] = p.codeLang
	}
	p.tree.Children = append(p.tree.Children, block)
	p.state = stateNormal
	p.codeLang = ""
	p.codeBuf = nil
}

func (p *parser) closeList()  { p.list = nil }
func (p *parser) closeTable() { p.table = nil }

func (p *parser) closeAll() {
	if p.state == stateCodeBlock {
		p.closeCode()
	}
	p.closeList()
	p.closeTable()
}

// headingMarker matches heading lines; levels deeper than 6 clamp to 6.
func headingMarker(line string) (level int, content string, ok bool) {
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != ' ' {
		return 0, "", false
	}
	level = i
	if level > 6 {
		level = 6
	}
	return level, strings.TrimSpace(line[i:]), true
}

func listMarker(line string) (kind BlockKind, content string, ok bool) {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return KindBulletList, strings.TrimSpace(line[2:]), true
	}
	if line == "-" || line == "*" {
		return KindBulletList, "", true
	}
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i+1 < len(line) && line[i] == '.' && line[i+1] == ' ' {
		return KindOrderedList, strings.TrimSpace(line[i+2:]), true
	}
	if i > 0 && i == len(line)-1 && line[i] == '.' {
		return KindOrderedList, "", true
	}
	return 0, "", false
}

func tableRow(line string) (cells []string, ok bool) {
	if !strings.HasPrefix(line, "|") {
		return nil, false
	}
	parts := strings.Split(line, "|")
	// Leading and trailing pipes produce empty outer fields.
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return nil, false
	}
	for _, part := range parts {
		cells = append(cells, strings.TrimSpace(part))
	}
	return cells, true
}

func isSeparatorRow(cells []string) bool {
	for _, cell := range cells {
		if cell == "" {
			return false
		}
		for _, r := range cell {
			if r != '-' && r != ':' {
				return false
			}
		}
	}
	return true
}

// imageNode extracts image references by locating bracket and paren
// boundaries explicitly. References may embed arbitrarily long inlined
// binary-as-text payloads, which break naive backtracking patterns, so no
// regular expression ever touches the reference.
func imageNode(line string) (*Image, bool) {
	if !strings.HasPrefix(line, "![") {
		return nil, false
	}

	var alt, rest string
	visual := strings.HasPrefix(line, "![[")
	if visual {
		end := strings.Index(line, "]]")
		if end < 0 {
			return nil, false
		}
		alt = line[len("![["):end]
		rest = line[end+len("]]"):]
	} else {
		end := strings.Index(line, "](")
		if end < 0 {
			return nil, false
		}
		alt = line[len("!["):end]
		rest = line[end+len("]"):]
	}

	if !strings.HasPrefix(rest, "(") {
		return nil, false
	}
	closing := strings.LastIndex(rest, ")")
	if closing < 1 {
		return nil, false
	}
	ref := rest[1:closing]
	if ref == "" {
		return nil, false
	}

	return &Image{
		AltText:   alt,
		Reference: ref,
		Canonical: !IsTransientRef(ref),
		Visual:    visual,
	}, true
}

// IsTransientRef reports whether ref is valid only for the current session:
// pasted data payloads and browser-local object handles.
func IsTransientRef(ref string) bool {
	return strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "blob:") ||
		strings.HasPrefix(ref, "local://")
}
