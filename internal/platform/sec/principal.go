// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Authenticated Identity

// Principal is the identity attached to a request once its session validates.
//
// It is rebuilt from the sessions and users tables on every request and is
// never cached across requests.
type Principal struct {
	UserID       string
	Username     string
	PrimaryEmail string

	// BearerHash identifies the session row; logout deletes by it.
	BearerHash []byte
}
