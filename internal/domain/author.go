package domain

import "encoding/json"

// Author is a person books are attributed to. Authors are created implicitly the first
// time a book names them and are never deleted.
type Author struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name" validate:"required,min=4"`
	// Born is the birth year, nil when unknown.
	Born *int `json:"born,omitempty" bson:"born,omitempty"`
}

// AuthorSummary pairs an author with the number of books attributed to it.
type AuthorSummary struct {
	Author    *Author
	BookCount int
}

// ResolvedAuthor is the outcome of following a book's author reference.
// The zero value is the unknown variant.
type ResolvedAuthor struct {
	author *Author
}

// KnownAuthor wraps an author that resolved successfully.
func KnownAuthor(a *Author) ResolvedAuthor {
	return ResolvedAuthor{author: a}
}

// UnknownAuthor is returned when a book references an author that no longer exists.
func UnknownAuthor() ResolvedAuthor {
	return ResolvedAuthor{}
}

// Author returns the resolved author and whether the reference was found.
func (r ResolvedAuthor) Author() (*Author, bool) {
	return r.author, r.author != nil
}

// IsKnown reports whether the reference resolved.
func (r ResolvedAuthor) IsKnown() bool {
	return r.author != nil
}

// MarshalJSON encodes the unknown variant as null.
func (r ResolvedAuthor) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.author)
}

// UnmarshalJSON decodes null as the unknown variant.
func (r *ResolvedAuthor) UnmarshalJSON(data []byte) error {
	var a *Author
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	r.author = a
	return nil
}
