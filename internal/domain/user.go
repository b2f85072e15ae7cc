package domain

// User is an account that can authenticate and curate the catalog.
type User struct {
	ID            string `json:"id" bson:"_id"`
	Username      string `json:"username" bson:"username" validate:"required,min=3"`
	FavoriteGenre string `json:"favoriteGenre" bson:"favoriteGenre" validate:"required"`
	// PasswordHash is an argon2id PHC string. Empty for accounts that cannot log in.
	PasswordHash string `json:"password_hash,omitempty" bson:"passwordHash,omitempty"`
}

// CanLogin reports whether the user has a stored credential.
func (u *User) CanLogin() bool {
	return u.PasswordHash != ""
}
