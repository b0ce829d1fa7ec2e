// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid provides time-ordered unique identifiers for the platform.

It wraps the google/uuid library to generate Version 7 values, which sort by
creation time and keep B-tree indexes compact. User ids and outgoing mail ids
use it; the mail queue relies on the ordering as its FIFO tie-breaker.
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new UUIDv7 string.
func New() string {

	// Create a new version 7 UUID (time-sortable)
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuidv7: failed to generate UUID: " + err.Error())
	}

	return id.String()
}

// # Parsing

// Valid reports whether s is a canonical UUID string.
func Valid(s string) bool {
	return uuid.Validate(s) == nil && len(s) == 36
}
