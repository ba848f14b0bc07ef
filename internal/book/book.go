// Package book models the document aggregate: metadata plus an ordered,
// non-empty sequence of lessons. Lesson content (Markdown) is the single
// source of truth between editing sessions.
package book

import (
	stderrors "errors"
	"strings"
	"time"
)

// ErrNoLessons marks an aggregate-shape failure: the editor refuses to
// render a book without lessons rather than guessing structure.
var ErrNoLessons = stderrors.New("book has no lessons")

type Metadata struct {
	Title        string    `json:"title" yaml:"title"`
	Author       string    `json:"author" yaml:"author"`
	GeneratedAt  time.Time `json:"generatedAt" yaml:"generatedAt"`
	TotalLessons int       `json:"totalLessons" yaml:"totalLessons"`
	// TotalWords is derived and recomputed from lesson content on every
	// mutation; it is never authoritative.
	TotalWords int `json:"totalWords" yaml:"totalWords"`
}

type Lesson struct {
	Title                string `json:"title" yaml:"title"`
	Content              string `json:"content" yaml:"-"`
	Filename             string `json:"filename" yaml:"filename"`
	ModuleNumber         int    `json:"moduleNumber,omitempty" yaml:"moduleNumber,omitempty"`
	LessonNumberInModule int    `json:"lessonNumberInModule,omitempty" yaml:"lessonNumberInModule,omitempty"`
	ModuleTitle          string `json:"moduleTitle,omitempty" yaml:"moduleTitle,omitempty"`
}

type Book struct {
	Metadata        Metadata `json:"metadata"`
	Lessons         []Lesson `json:"lessons"`
	TableOfContents []string `json:"tableOfContents"`
}

// Validate checks the aggregate shape. Loading a malformed aggregate is
// fatal, not recoverable.
func (b *Book) Validate() error {
	if len(b.Lessons) == 0 {
		return ErrNoLessons
	}
	return nil
}

// RecomputeDerived refreshes every derived field from lesson content. Callers
// must invoke it after each mutation of Lessons.
func (b *Book) RecomputeDerived() {
	b.Metadata.TotalLessons = len(b.Lessons)
	total := 0
	for _, lesson := range b.Lessons {
		total += WordCount(lesson.Content)
	}
	b.Metadata.TotalWords = total
	b.TableOfContents = deriveTableOfContents(b.Lessons)
}

// SetLessonContent replaces one lesson's content, the only mutation the
// finalize-edit transition performs, and recomputes derived fields.
func (b *Book) SetLessonContent(index int, content string) error {
	if index < 0 || index >= len(b.Lessons) {
		return stderrors.New("lesson index out of range")
	}
	b.Lessons[index].Content = content
	b.RecomputeDerived()
	return nil
}

// WordCount counts whitespace-delimited tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Clone returns a deep copy, used to snapshot the original aggregate before
// the author starts editing.
func (b *Book) Clone() *Book {
	clone := &Book{Metadata: b.Metadata}
	clone.Lessons = append([]Lesson(nil), b.Lessons...)
	clone.TableOfContents = append([]string(nil), b.TableOfContents...)
	return clone
}
