package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_ASCIIChunkSizes(t *testing.T) {
	text := strings.Repeat("a", 237)
	chunks := Chunk(text, DefaultChunkSize)

	require := assert.New(t)
	require.Len(chunks, 5)
	lengths := make([]int, len(chunks))
	for i, c := range chunks {
		lengths[i] = len([]rune(c))
	}
	require.Equal([]int{50, 50, 50, 50, 37}, lengths)
	require.Equal(text, strings.Join(chunks, ""))
}

func TestChunk_NeverSplitsMultiByteCodepoint(t *testing.T) {
	text := strings.Repeat("é", 4) // 2-byte UTF-8 codepoints
	chunks := Chunk(text, 3)

	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c)
		assert.True(t, isValidUTF8Chunk(c))
	}
	assert.Equal(t, text, rebuilt.String())
}

func isValidUTF8Chunk(s string) bool {
	return ValidUTF8(s)
}

func TestChunk_EmptyTextYieldsNoChunks(t *testing.T) {
	assert.Nil(t, Chunk("", DefaultChunkSize))
}

func TestChunk_DefaultsOnNonPositiveSize(t *testing.T) {
	text := strings.Repeat("x", 60)
	chunks := Chunk(text, 0)
	assert.Len(t, chunks, 2)
}
