package entity

import "time"

// User owns a set of registered TOTP devices. Usernames are
// case-sensitive, unique, and immutable once created.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// Device is a per-user TOTP credential. The secret is Base32 text and
// never changes after creation; Verified flips false to true exactly
// once on the first successful verification.
type Device struct {
	ID        int64
	UserID    int64
	Name      string
	Secret    string
	Verified  bool
	CreatedAt time.Time
}
