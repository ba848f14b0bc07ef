package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatInline(t *testing.T) {
	assert.Equal(t, "Hello <strong>world</strong>", FormatInline("Hello **world**"))
	assert.Equal(t, "an <em>idea</em>", FormatInline("an *idea*"))
	assert.Equal(t, "run <code>go test</code>", FormatInline("run `go test`"))
	assert.Equal(
		t,
		"<strong>bold</strong> and <em>italic</em> and <code>code</code>",
		FormatInline("**bold** and *italic* and `code`"),
	)
}

func TestFormatInline_StrayFenceRemoved(t *testing.T) {
	assert.Equal(t, "before\nafter", FormatInline("before\n```\nafter"))
	assert.Equal(t, "keep ``` inline", FormatInline("keep ``` inline"))
}

func TestFormatInline_Idempotent(t *testing.T) {
	inputs := []string{
		"Hello **world**",
		"*a* and **b** and `c`",
		"plain text",
		"2 * 3 = 6",
		"already <strong>formatted</strong>",
		"mixed **bold** with <em>existing</em>",
	}
	for _, input := range inputs {
		once := FormatInline(input)
		assert.Equal(t, once, FormatInline(once), input)
	}
}

func TestUnformatInline_InvertsFormat(t *testing.T) {
	inputs := []string{
		"Hello **world**",
		"run `go test` now",
		"an *idea*",
	}
	for _, input := range inputs {
		assert.Equal(t, input, UnformatInline(FormatInline(input)), input)
	}
}

func TestEscapeMarkup_RoundTrip(t *testing.T) {
	raw := "if a < b && b > c { <tag> }"
	assert.Equal(t, raw, UnescapeMarkup(EscapeMarkup(raw)))
	assert.Equal(t, "if a &lt; b &amp;&amp; b &gt; c { &lt;tag&gt; }", EscapeMarkup(raw))
}
