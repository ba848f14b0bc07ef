package document

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrTransientReference is returned when serialization would persist a
// session-local image reference that would be dead on reload.
var ErrTransientReference = errors.New("tree contains transient image references")

// CanonicalLookup reports the canonical reference recorded for an image
// insertion. The lifecycle manager implements it.
type CanonicalLookup interface {
	Canonical(insertionID string) (string, bool)
}

// SerializeOptions control image-reference resolution during serialization.
type SerializeOptions struct {
	// Lookup resolves insertion IDs to canonical references recorded since
	// the tree was built. A recorded canonical reference always overrides
	// whatever reference the node currently displays.
	Lookup CanonicalLookup
	// AllowTransient emits transient references instead of failing. This is
	// the author's explicit proceed-with-warning choice; the emitted
	// reference will not survive a reload.
	AllowTransient bool
}

// Serialize converts the editable tree back into Markdown. It is the
// structural inverse of Parse.
func Serialize(tree *Tree, opts SerializeOptions) (string, error) {
	if err := resolveImages(tree, opts); err != nil {
		return "", err
	}

	var lines []string
	for _, child := range tree.Children {
		lines = append(lines, renderNode(child)...)
	}

	return collapseBlankRuns(lines), nil
}

func resolveImages(tree *Tree, opts SerializeOptions) error {
	var unresolved []string
	for _, img := range tree.Images() {
		if opts.Lookup != nil && img.InsertionID != "" {
			if ref, ok := opts.Lookup.Canonical(img.InsertionID); ok {
				img.Reference = ref
				img.Canonical = true
				continue
			}
		}
		if !img.Canonical && IsTransientRef(img.Reference) {
			unresolved = append(unresolved, img.AltText)
		}
	}
	if len(unresolved) > 0 && !opts.AllowTransient {
		return errors.Wrapf(ErrTransientReference, "pending uploads for %q", unresolved)
	}
	return nil
}

func renderNode(n Node) []string {
	switch v := n.(type) {
	case *Block:
		return renderBlock(v)
	case *Image:
		return []string{renderImage(v)}
	case *Text:
		return []string{UnformatInline(v.Value)}
	case *Inline:
		return []string{inlineText(v)}
	}
	return nil
}

func renderBlock(b *Block) []string {
	switch b.Kind {
	case KindBreak:
		return []string{""}
	case KindHeading:
		level, err := strconv.Atoi(b.Attributes["level"])
		if err != nil || level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		return []string{strings.Repeat("#", level) + " " + childText(b)}
	case KindParagraph:
		return []string{childText(b)}
	case KindBlockquote:
		return []string{"> " + childText(b)}
	case KindBulletList:
		var lines []string
		for _, item := range b.Children {
			if li, ok := item.(*Block); ok {
				lines = append(lines, "- "+childText(li))
			}
		}
		return lines
	case KindOrderedList:
		var lines []string
		i := 0
		for _, item := range b.Children {
			if li, ok := item.(*Block); ok {
				i++
				lines = append(lines, strconv.Itoa(i)+". "+childText(li))
			}
		}
		return lines
	case KindCodeBlock:
		body := UnescapeMarkup(childText(b))
		var lines []string
		lines = append(lines, "```"+b.Attributes["language"])
		if body != "" {
			lines = append(lines, strings.Split(body, "\n")...)
		}
		return append(lines, "```")
	case KindTable:
		// Tables are not reconstructed as formal tables; each row's cells
		// are concatenated into one line.
		var lines []string
		for _, row := range b.Children {
			r, ok := row.(*Block)
			if !ok {
				continue
			}
			var cells []string
			for _, cell := range r.Children {
				if c, ok := cell.(*Block); ok {
					cells = append(cells, childText(c))
				}
			}
			lines = append(lines, strings.Join(cells, " "))
		}
		return lines
	case KindTableRow, KindTableCell, KindListItem:
		return []string{childText(b)}
	}
	return []string{childText(b)}
}

// childText flattens a block's children into Markdown span text. Inside code
// blocks the caller unescapes afterwards; everywhere else text values hold
// surface formatting that UnformatInline reverses.
func childText(b *Block) string {
	var sb strings.Builder
	for _, child := range b.Children {
		switch v := child.(type) {
		case *Text:
			if b.Kind == KindCodeBlock {
				sb.WriteString(v.Value)
			} else {
				sb.WriteString(UnformatInline(v.Value))
			}
		case *Inline:
			sb.WriteString(inlineText(v))
		case *Image:
			sb.WriteString(renderImage(v))
		case *Block:
			sb.WriteString(childText(v))
		}
	}
	return sb.String()
}

func inlineText(in *Inline) string {
	var sb strings.Builder
	for _, child := range in.Children {
		switch v := child.(type) {
		case *Text:
			sb.WriteString(UnformatInline(v.Value))
		case *Inline:
			sb.WriteString(inlineText(v))
		}
	}
	body := sb.String()
	switch in.Kind {
	case InlineBold:
		return "**" + body + "**"
	case InlineItalic:
		return "*" + body + "*"
	case InlineCode:
		return "`" + body + "`"
	}
	return body
}

func renderImage(img *Image) string {
	if img.Visual {
		return "![[" + img.AltText + "]](" + img.Reference + ")"
	}
	return "![" + img.AltText + "](" + img.Reference + ")"
}

// collapseBlankRuns joins lines into the final document, squeezing runs of
// three or more blank lines down to a single one. Round-tripping otherwise
// accumulates spacing.
func collapseBlankRuns(lines []string) string {
	var sb strings.Builder
	blanks := 0
	flush := func() {
		if blanks == 0 {
			return
		}
		n := blanks
		if n >= 3 {
			n = 1
		}
		for i := 0; i < n; i++ {
			sb.WriteByte('\n')
		}
		blanks = 0
	}
	for _, line := range lines {
		if line == "" {
			blanks++
			continue
		}
		flush()
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	flush()
	return sb.String()
}
