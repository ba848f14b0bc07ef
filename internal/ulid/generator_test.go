package ulid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	require.Len(t, id, 26)
	assert.True(t, ValidID(id))
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestMockGenerator(t *testing.T) {
	MockGenerator("01HF53Z1R2Q9PT0WK4N8XYZABC")
	defer ResetGenerator()
	assert.Equal(t, "01HF53Z1R2Q9PT0WK4N8XYZABC", GenerateID())
	assert.Equal(t, "01HF53Z1R2Q9PT0WK4N8XYZABC", GenerateID())
}
