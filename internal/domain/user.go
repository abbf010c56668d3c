// Package domain contains core domain types for the quantdesk shell.
package domain

import "time"

// UserInfo is the user payload embedded in the session token and mirrored
// in the user-info snapshot.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// DisplayName returns the nickname, falling back to the username.
func (u *UserInfo) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// Claims is the decoded content of a session token.
type Claims struct {
	// ExpiresAt is the expiry in seconds since the epoch.
	ExpiresAt int64    `json:"expiresAt"`
	UserInfo  UserInfo `json:"embeddedUserInfo"`
}

// Expired reports whether the token expired strictly before now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt < now.Unix()
}

// Credentials is a login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Remember asks the gateway to cache the credentials for prefill.
	Remember bool `json:"remember,omitempty"`
}

// RememberedUser is the cached shape of opted-in credentials.
type RememberedUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is a sign-up request.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}
