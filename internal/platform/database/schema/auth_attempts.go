// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AuthAttemptsTable represents the 'auth_attempts' table
type AuthAttemptsTable struct {
	Table      string
	TicketHash string
	UserID     string
	State      string
	IPAddr     string
	StartedAt  string
	SuccessAt  string
}

// AuthAttempts is the schema definition for auth_attempts
var AuthAttempts = AuthAttemptsTable{
	Table:      "auth_attempts",
	TicketHash: "ticket_hash",
	UserID:     "user_id",
	State:      "state",
	IPAddr:     "ip_addr",
	StartedAt:  "started_at",
	SuccessAt:  "success_at",
}

// Columns returns all standard column names
func (t AuthAttemptsTable) Columns() []string {
	return []string{t.TicketHash, t.UserID, t.State, t.IPAddr, t.StartedAt, t.SuccessAt}
}
