package shared

import "strings"

// UserID identifies the owner of activities, goals and stats.
// Identity is issued by the external auth provider, so it is opaque here.
type UserID string

// IsValid checks that the ID is non-empty and reasonably sized.
func (u UserID) IsValid() bool {
	s := strings.TrimSpace(string(u))
	return s != "" && len(s) <= 128
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", ErrInvalidUserID
	}
	return u, nil
}
