package book

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrFrontmatterInvalid = stderrors.New("invalid frontmatter")

// frontmatter is the metadata header of the Markdown persisted form. Lesson
// bodies live in the document below it; per-lesson fields that Markdown has
// no syntax for ride along here, matched to headings by order.
type frontmatter struct {
	Title       string       `yaml:"title" toml:"title" json:"title"`
	Author      string       `yaml:"author" toml:"author" json:"author"`
	GeneratedAt time.Time    `yaml:"generatedAt" toml:"generatedAt" json:"generatedAt"`
	Lessons     []lessonMeta `yaml:"lessons,omitempty" toml:"lessons,omitempty" json:"lessons,omitempty"`
}

type lessonMeta struct {
	Filename             string `yaml:"filename" toml:"filename" json:"filename"`
	ModuleNumber         int    `yaml:"moduleNumber,omitempty" toml:"moduleNumber,omitempty" json:"moduleNumber,omitempty"`
	LessonNumberInModule int    `yaml:"lessonNumberInModule,omitempty" toml:"lessonNumberInModule,omitempty" json:"lessonNumberInModule,omitempty"`
	ModuleTitle          string `yaml:"moduleTitle,omitempty" toml:"moduleTitle,omitempty" json:"moduleTitle,omitempty"`
}

// splitFrontmatter separates the metadata header from the document body.
// YAML sits between "---" lines, TOML between "+++" lines; a YAML header
// whose body opens with "{" is parsed as JSON.
func splitFrontmatter(data []byte) (header []byte, body []byte, delimiter string) {
	lines := bytes.SplitN(data, []byte("\n"), 2)
	if len(lines) < 2 {
		return nil, data, ""
	}
	first := strings.TrimRight(string(lines[0]), "\r")
	if first != "---" && first != "+++" {
		return nil, data, ""
	}

	rest := lines[1]
	marker := []byte("\n" + first)
	end := bytes.Index(rest, marker)
	if end < 0 {
		return nil, data, ""
	}

	header = rest[:end]
	body = rest[end+len(marker):]
	body = bytes.TrimPrefix(body, []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))
	return header, body, first
}

func parseFrontmatter(header []byte, delimiter string) (*frontmatter, error) {
	var fm frontmatter
	switch {
	case delimiter == "+++":
		if err := toml.Unmarshal(header, &fm); err != nil {
			return nil, errors.Wrap(ErrFrontmatterInvalid, err.Error())
		}
	case bytes.HasPrefix(bytes.TrimSpace(header), []byte("{")):
		if err := json.Unmarshal(bytes.TrimSpace(header), &fm); err != nil {
			return nil, errors.Wrap(ErrFrontmatterInvalid, err.Error())
		}
	default:
		if err := yaml.Unmarshal(header, &fm); err != nil {
			return nil, errors.Wrap(ErrFrontmatterInvalid, err.Error())
		}
	}
	return &fm, nil
}

func marshalFrontmatter(fm *frontmatter) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(fm); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	buf.WriteString("---\n")
	return buf.Bytes(), nil
}
