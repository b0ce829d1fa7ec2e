// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// EmailVerificationTable represents the 'email_verification' table
type EmailVerificationTable struct {
	Table          string
	ClientTicket   string
	Email          string
	CodeTicketHash string
	Code           string
	TryCount       string
	CreatedAt      string
	Purpose        string
	UserID         string
}

// EmailVerification is the schema definition for email_verification
var EmailVerification = EmailVerificationTable{
	Table:          "email_verification",
	ClientTicket:   "client_ticket",
	Email:          "email",
	CodeTicketHash: "code_ticket_hash",
	Code:           "code",
	TryCount:       "try_count",
	CreatedAt:      "created_at",
	Purpose:        "purpose",
	UserID:         "user_id",
}

// Columns returns all standard column names
func (t EmailVerificationTable) Columns() []string {
	return []string{t.ClientTicket, t.Email, t.CodeTicketHash, t.Code, t.TryCount, t.CreatedAt, t.Purpose, t.UserID}
}
