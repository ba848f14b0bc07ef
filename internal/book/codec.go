package book

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Load normalizes either persisted form into the in-memory aggregate. A
// document opening with "{" is the JSON form; anything else is the
// newline-delimited Markdown form with an optional frontmatter header.
func Load(data []byte) (*Book, error) {
	trimmed := bytes.TrimLeftFunc(data, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return loadJSON(trimmed)
	}
	return loadMarkdown(data)
}

func loadJSON(data []byte) (*Book, error) {
	var b Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(err, "failed to decode book JSON")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.RecomputeDerived()
	return &b, nil
}

func loadMarkdown(data []byte) (*Book, error) {
	header, body, delimiter := splitFrontmatter(data)

	var fm *frontmatter
	if header != nil {
		parsed, err := parseFrontmatter(header, delimiter)
		if err != nil {
			return nil, err
		}
		fm = parsed
	} else {
		fm = &frontmatter{}
	}

	lessons := splitLessons(string(body))
	b := &Book{
		Metadata: Metadata{
			Title:       fm.Title,
			Author:      fm.Author,
			GeneratedAt: fm.GeneratedAt,
		},
		Lessons: lessons,
	}
	for i := range b.Lessons {
		if i < len(fm.Lessons) {
			meta := fm.Lessons[i]
			if meta.Filename != "" {
				b.Lessons[i].Filename = meta.Filename
			}
			b.Lessons[i].ModuleNumber = meta.ModuleNumber
			b.Lessons[i].LessonNumberInModule = meta.LessonNumberInModule
			b.Lessons[i].ModuleTitle = meta.ModuleTitle
		}
		if b.Lessons[i].Filename == "" {
			b.Lessons[i].Filename = fmt.Sprintf("lesson-%02d.md", i+1)
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.RecomputeDerived()
	return b, nil
}

// splitLessons cuts the body at level-1 headings, tracking code fences so a
// "# comment" inside a fenced block does not start a new lesson. Body text
// before the first heading folds into the first lesson so no author content
// is lost on load.
func splitLessons(body string) []Lesson {
	var lessons []Lesson
	var current *Lesson
	var buf, preamble []string
	inFence := false

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(buf, "\n"))
		if current.Content != "" {
			current.Content += "\n"
		}
		lessons = append(lessons, *current)
		current = nil
		buf = nil
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if isFenceLine(trimmed) {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, "# ") {
			flush()
			current = &Lesson{Title: strings.TrimSpace(line[2:])}
			for len(preamble) > 0 && strings.TrimSpace(preamble[len(preamble)-1]) == "" {
				preamble = preamble[:len(preamble)-1]
			}
			buf = append(buf, preamble...)
			preamble = nil
			continue
		}
		if current != nil {
			buf = append(buf, line)
		} else {
			preamble = append(preamble, line)
		}
	}
	flush()
	return lessons
}

func isFenceLine(s string) bool {
	return strings.HasPrefix(s, "```") || strings.HasPrefix(s, "~~~") || strings.HasPrefix(s, "'''")
}

// MarshalJSON renders the JSON persisted form.
func MarshalJSON(b *Book) ([]byte, error) {
	b.RecomputeDerived()
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return append(data, '\n'), nil
}

// MarshalMarkdown renders the human-readable persisted form: a YAML
// frontmatter header followed by lessons delimited by level-1 headings.
func MarshalMarkdown(b *Book) ([]byte, error) {
	b.RecomputeDerived()

	fm := &frontmatter{
		Title:       b.Metadata.Title,
		Author:      b.Metadata.Author,
		GeneratedAt: b.Metadata.GeneratedAt,
	}
	for _, lesson := range b.Lessons {
		fm.Lessons = append(fm.Lessons, lessonMeta{
			Filename:             lesson.Filename,
			ModuleNumber:         lesson.ModuleNumber,
			LessonNumberInModule: lesson.LessonNumberInModule,
			ModuleTitle:          lesson.ModuleTitle,
		})
	}

	result, err := marshalFrontmatter(fm)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.Write(result)
	for _, lesson := range b.Lessons {
		sb.WriteString("\n# ")
		sb.WriteString(lesson.Title)
		sb.WriteString("\n\n")
		sb.WriteString(lesson.Content)
	}
	return []byte(sb.String()), nil
}
