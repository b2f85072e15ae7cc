package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		v, err := Generate(Book)
		require.NoError(t, err)
		assert.False(t, ids[v], "ID should be unique: %s", v)
		ids[v] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{Author, Book, User, Token} {
		t.Run(prefix, func(t *testing.T) {
			v, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, HasPrefix(v, prefix))
			assert.Equal(t, len(prefix)+1+21, len(v), "ID: %s", v)

			for _, char := range strings.TrimPrefix(v, prefix+"-") {
				assert.True(t,
					(char >= 'A' && char <= 'Z') ||
						(char >= 'a' && char <= 'z') ||
						(char >= '0' && char <= '9') ||
						char == '_' || char == '-',
					"Character %c should be URL-safe", char)
			}
		})
	}
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix(MustGenerate(Author), Author))
	assert.False(t, HasPrefix(MustGenerate(Author), Book))
	// Seeded fixtures use UUIDs.
	assert.False(t, HasPrefix("afa51ab0-344d-11e9-a414-719c6709cf3e", Author))
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Generate(Book)
	}
}
