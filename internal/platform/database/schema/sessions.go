// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// SessionsTable represents the 'sessions' table
type SessionsTable struct {
	Table      string
	BearerHash string
	CookieHash string
	UserID     string
	Provenance string
	CreatedAt  string
}

// Sessions is the schema definition for sessions
var Sessions = SessionsTable{
	Table:      "sessions",
	BearerHash: "bearer_hash",
	CookieHash: "cookie_hash",
	UserID:     "user_id",
	Provenance: "provenance",
	CreatedAt:  "created_at",
}

// Columns returns all standard column names
func (t SessionsTable) Columns() []string {
	return []string{t.BearerHash, t.CookieHash, t.UserID, t.Provenance, t.CreatedAt}
}
