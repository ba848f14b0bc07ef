package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type canonicalMap map[string]string

func (m canonicalMap) Canonical(id string) (string, bool) {
	ref, ok := m[id]
	return ref, ok
}

func TestSerialize_RoundTrip(t *testing.T) {
	sources := []string{
		"# Lesson 1\n\nHello **world**\n",
		"```yaml\nkey: 1\n```\n",
		"- item\n- item\n\n1. item\n",
		"# Intro\n\n> a quote\n\nSome *text* with `code`.\n",
		"## Sub\n\n![a chart](https://img.example.com/c.png)\n",
		"### Three\n\n1. one\n2. two\n3. three\n",
		"![[architecture]](images/arch.png)\n",
		"```go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```\n",
	}
	for _, source := range sources {
		tree := Parse(source)
		result, err := Serialize(tree, SerializeOptions{})
		require.NoError(t, err, source)
		assert.Equal(t, source, result, source)
	}
}

func TestSerialize_RoundTripTwice(t *testing.T) {
	source := "# Title\n\nBody with **bold**.\n\n- a\n- b\n"
	once, err := Serialize(Parse(source), SerializeOptions{})
	require.NoError(t, err)
	twice, err := Serialize(Parse(once), SerializeOptions{})
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSerialize_CollapsesBlankRuns(t *testing.T) {
	tree := Parse("a\n\n\n\n\nb\n")
	result, err := Serialize(tree, SerializeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb\n", result)
}

func TestSerialize_TwoBlankLinesKept(t *testing.T) {
	tree := Parse("a\n\n\nb\n")
	result, err := Serialize(tree, SerializeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a\n\n\nb\n", result)
}

func TestSerialize_InlineNodes(t *testing.T) {
	tree := &Tree{Children: []Node{
		&Block{Kind: KindParagraph, Children: []Node{
			&Text{Value: "see "},
			&Inline{Kind: InlineBold, Children: []Node{&Text{Value: "this"}}},
			&Text{Value: " and "},
			&Inline{Kind: InlineCode, Children: []Node{&Text{Value: "that"}}},
		}},
	}}
	result, err := Serialize(tree, SerializeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "see **this** and `that`\n", result)
}

func TestSerialize_CanonicalOverridesDisplayed(t *testing.T) {
	tree := &Tree{Children: []Node{
		&Image{
			AltText:     "pasted",
			Reference:   "data:image/png;base64,AAAA",
			InsertionID: "01HF53Z1R2Q9PT0WK4N8XYZABC",
		},
	}}
	lookup := canonicalMap{"01HF53Z1R2Q9PT0WK4N8XYZABC": "books/1/images/a.png"}

	result, err := Serialize(tree, SerializeOptions{Lookup: lookup})
	require.NoError(t, err)
	assert.Equal(t, "![pasted](books/1/images/a.png)\n", result)
	assert.True(t, tree.Images()[0].Canonical)
}

func TestSerialize_TransientReferenceFails(t *testing.T) {
	tree := &Tree{Children: []Node{
		&Image{AltText: "pasted", Reference: "data:image/png;base64,AAAA", InsertionID: "x"},
	}}

	_, err := Serialize(tree, SerializeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransientReference)

	result, err := Serialize(tree, SerializeOptions{AllowTransient: true})
	require.NoError(t, err)
	assert.Equal(t, "![pasted](data:image/png;base64,AAAA)\n", result)
}

func TestSerialize_TableRowsConcatenated(t *testing.T) {
	tree := Parse("| **Name** | **Age** |\n|---|---|\n| Ann | 3 |\n")
	result, err := Serialize(tree, SerializeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "**Name** **Age**\nAnn 3\n", result)
}
