// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package users owns account records.

The trust subsystem needs only a narrow slice of a user: the id, the primary
email that verification mails go to, and the admin flag carried into the
session principal.
*/
package users

import (
	"strings"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/sec"
)

// # Domain Entities

// User is a registered account.
type User struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"username"`
	PrimaryEmail string    `json:"primary_email,omitempty"`
	DisplayName  string    `json:"display_name"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPrimaryEmail reports whether email verification can authenticate this user.
func (u *User) HasPrimaryEmail() bool {
	return u != nil && u.PrimaryEmail != ""
}

// MatchesEmail compares an address with the primary email, ignoring case.
func (u *User) MatchesEmail(email string) bool {
	return u.HasPrimaryEmail() && strings.EqualFold(u.PrimaryEmail, email)
}

// Principal projects the user into a request identity.
func (u *User) Principal(bearerHash []byte) *sec.Principal {
	return &sec.Principal{
		UserID:       u.ID,
		Username:     u.Username,
		PrimaryEmail: u.PrimaryEmail,
		BearerHash:   bearerHash,
	}
}

// # Field Identifiers

const (
	FieldUsername    = "username"
	FieldEmail       = "email"
	FieldDisplayName = "display_name"
)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
