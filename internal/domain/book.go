// Package domain contains the catalog entities: authors, books and the users who curate them.
package domain

// Book is an immutable catalog entry. AuthorID references an Author by id.
type Book struct {
	ID        string   `json:"id" bson:"_id"`
	Title     string   `json:"title" bson:"title" validate:"required,min=2"`
	Published int      `json:"published" bson:"published"`
	AuthorID  string   `json:"author" bson:"author" validate:"required"`
	Genres    []string `json:"genres" bson:"genres"`
}

// HasGenre reports whether genre is one of the book's genres. Matching is exact and case-sensitive.
func (b *Book) HasGenre(genre string) bool {
	for _, g := range b.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// PopulatedBook is a book with its author reference followed.
// It is the payload of the bookAdded feed.
type PopulatedBook struct {
	Book   *Book          `json:"book"`
	Author ResolvedAuthor `json:"author"`
}
