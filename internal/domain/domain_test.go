package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_HasGenre(t *testing.T) {
	b := &Book{Genres: []string{"refactoring", "patterns"}}

	assert.True(t, b.HasGenre("patterns"))
	assert.False(t, b.HasGenre("Patterns"))
	assert.False(t, (&Book{}).HasGenre("patterns"))
}

func TestResolvedAuthor(t *testing.T) {
	born := 1952
	martin := &Author{ID: "a1", Name: "Robert Martin", Born: &born}

	a, ok := KnownAuthor(martin).Author()
	assert.True(t, ok)
	assert.Same(t, martin, a)

	a, ok = UnknownAuthor().Author()
	assert.False(t, ok)
	assert.Nil(t, a)
	assert.False(t, ResolvedAuthor{}.IsKnown())
}

func TestPopulatedBook_JSON(t *testing.T) {
	born := 1821
	in := PopulatedBook{
		Book:   &Book{ID: "b1", Title: "Crime and punishment", Published: 1866, AuthorID: "a1", Genres: []string{"classic", "crime"}},
		Author: KnownAuthor(&Author{ID: "a1", Name: "Fyodor Dostoevsky", Born: &born}),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out PopulatedBook
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Book, out.Book)
	got, ok := out.Author.Author()
	require.True(t, ok)
	assert.Equal(t, "Fyodor Dostoevsky", got.Name)

	t.Run("unknown author encodes as null", func(t *testing.T) {
		data, err := json.Marshal(PopulatedBook{Book: in.Book, Author: UnknownAuthor()})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"author":null`)

		var out PopulatedBook
		require.NoError(t, json.Unmarshal(data, &out))
		assert.False(t, out.Author.IsKnown())
	})
}

func TestUser_CanLogin(t *testing.T) {
	assert.False(t, (&User{Username: "mluukkai"}).CanLogin())
	assert.True(t, (&User{Username: "mluukkai", PasswordHash: "$argon2id$..."}).CanLogin())
}
