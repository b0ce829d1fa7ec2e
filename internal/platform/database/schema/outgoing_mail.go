// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// OutgoingMailTable represents the 'outgoing_mail' table
type OutgoingMailTable struct {
	Table        string
	ID           string
	UserID       string
	Address      string
	Subject      string
	Content      string
	ContentPlain string
	Status       string
	RetryCount   string
	PauseUntil   string
	Purpose      string
	LastError    string
	CreatedAt    string
}

// OutgoingMail is the schema definition for outgoing_mail
var OutgoingMail = OutgoingMailTable{
	Table:        "outgoing_mail",
	ID:           "id",
	UserID:       "user_id",
	Address:      "address",
	Subject:      "subject",
	Content:      "content",
	ContentPlain: "content_plain",
	Status:       "status",
	RetryCount:   "retry_count",
	PauseUntil:   "pause_until",
	Purpose:      "purpose",
	LastError:    "last_error",
	CreatedAt:    "created_at",
}

// Columns returns all standard column names
func (t OutgoingMailTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.Address, t.Subject, t.Content, t.ContentPlain,
		t.Status, t.RetryCount, t.PauseUntil, t.Purpose, t.LastError, t.CreatedAt,
	}
}
