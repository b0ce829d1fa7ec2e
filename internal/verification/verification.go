// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package verification proves control of an email address.

A client holds a ticket naming the request; the secret is a six digit code
shown on a page reached through a second, unguessable code ticket mailed to
the address. The code is assigned on first view and the record dies after a
fixed TTL or a fixed number of checks, whichever comes first.
*/
package verification

import "time"

// # Defaults

const (
	// DefaultTTL is measured from creation, independent of the try count.
	DefaultTTL = time.Hour

	// DefaultMaxTries is the try count at which the record stops accepting codes.
	DefaultMaxTries = 5

	// CodeDigits is the length of the one-time code.
	CodeDigits = 6

	// MailPurpose tags verification mail in the outgoing queue.
	MailPurpose = "email-verification"
)

// Purpose is what the verified address will be used for.
type Purpose string

const (
	PurposeLogin  Purpose = "login"
	PurposeSignUp Purpose = "signup"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeSignUp
}

// # Domain Entities

// Verification is one pending proof of an address.
type Verification struct {
	ClientTicket   string
	Email          string
	CodeTicketHash []byte

	// Code stays nil until the code page is first opened.
	Code      *string
	TryCount  int
	CreatedAt time.Time
	Purpose   Purpose
	UserID    *string
}

// Expired reports whether ttl has elapsed since creation.
func (v *Verification) Expired(now time.Time, ttl time.Duration) bool {
	return v.CreatedAt.Add(ttl).Before(now)
}

// Field names used in validation errors and request bodies.
const (
	FieldClientTicket = "clientTicket"
	FieldCodeTicket   = "code_ticket"
	FieldEmail        = "email"
	FieldCode         = "code"
	FieldPurpose      = "purpose"
)
