package model

import "time"

// User is a registered account that can own articles.
//
// PasswordHash holds the bcrypt output produced by auth.PasswordService.Hash.
// The `json:"-"` tag keeps it out of every encoded response, including
// cached payloads written to Redis.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Author is the public projection of a User that is joined into articles.
type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// AsAuthor returns the public identity of the user.
func (u *User) AsAuthor() Author {
	return Author{ID: u.ID, Username: u.Username}
}
