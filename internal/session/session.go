// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session issues, validates and revokes login sessions.

A session is a pair of independent secure tokens: the bearer, sent with every
API call, and the cookie, bound to the browser as a second factor. Only their
hashes are stored, so the plaintexts are returned exactly once at creation.
A session is valid exactly as long as its row exists.
*/
package session

import "time"

// # Domain Entities

// Session is the stored half of a session.
type Session struct {
	BearerHash []byte
	CookieHash []byte
	UserID     string

	// Provenance is the hashed auth-attempt ticket that granted the session.
	Provenance []byte
	CreatedAt  time.Time
}

// Credentials are the plaintext tokens handed to the client once.
type Credentials struct {
	Bearer string `json:"auth_token"`
	Cookie string `json:"-"`
}
