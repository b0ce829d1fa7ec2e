// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mail owns the outgoing mail queue.

Any component that needs to notify a user enqueues a Pending row; only the
delivery job moves a row to Delivered or Failed, and a terminal row never
changes again.

Delivery:

  - One row is claimed at a time, skipping rows claimed by another worker.
  - A failed send pauses the row for a fixed backoff and bumps retry_count.
  - A row that fails at the retry cap becomes Failed.
*/
package mail

import "time"

// # Status

// Status is the delivery state of an [OutgoingMail].
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further delivery attempt will be made.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// # Domain Entities

// OutgoingMail is one queued message.
type OutgoingMail struct {
	ID           string
	UserID       *string
	Address      string
	Subject      string
	Content      string
	ContentPlain string
	Status       Status
	RetryCount   int
	PauseUntil   *time.Time
	Purpose      string
	LastError    *string
	CreatedAt    time.Time
}

// Draft is what callers hand to [Service.Enqueue].
type Draft struct {
	UserID  string
	To      string
	Subject string
	HTML    string
	Text    string

	// Purpose tags the message for the transport and for audits ("email-verification").
	Purpose string
}

// Update is the transition applied to a claimed row.
type Update struct {
	Status     Status
	RetryCount int
	PauseUntil *time.Time
	LastError  *string
}

// Message is the transport-level view of a mail.
type Message struct {
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	HTML      string            `json:"html"`
	Text      string            `json:"text"`
	Tag       string            `json:"tag"`
	MessageID string            `json:"message_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
