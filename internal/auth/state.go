// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"encoding/json"
	"fmt"
)

// State keys understood by this package. Other keys are carried through untouched.
const (
	keyEmailTicket  = "email_verification_client_ticket"
	keyEmailSolved  = "email_verification_solved"
	keyAutoLogin    = "first_sign_up_auto_login"
	emptyStateBytes = "{}"
)

// State is the attempt-scoped progress blob.
//
// Its JSON form is canonical (sorted keys, compact), which is what the
// compare-and-swap in the stores matches against.
type State struct {
	// EmailVerificationClientTicket is set once a verification mail was requested.
	EmailVerificationClientTicket string

	// EmailVerificationSolved is set once the code was confirmed.
	EmailVerificationSolved bool

	// FirstSignUpAutoLogin lets a freshly registered user in without a sub-flow.
	FirstSignUpAutoLogin bool

	extra map[string]json.RawMessage
}

// MarshalJSON encodes the state with sorted keys, omitting unset flags.
func (s State) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(s.extra)+3)
	for key, value := range s.extra {
		fields[key] = value
	}

	if s.EmailVerificationClientTicket != "" {
		ticket, err := json.Marshal(s.EmailVerificationClientTicket)
		if err != nil {
			return nil, err
		}
		fields[keyEmailTicket] = ticket
	}
	if s.EmailVerificationSolved {
		fields[keyEmailSolved] = json.RawMessage("true")
	}
	if s.FirstSignUpAutoLogin {
		fields[keyAutoLogin] = json.RawMessage("true")
	}

	// Map keys are emitted in sorted order.
	return json.Marshal(fields)
}

// UnmarshalJSON decodes the known flags and keeps every other key.
func (s *State) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("auth: decode state: %w", err)
	}

	*s = State{}

	if raw, ok := fields[keyEmailTicket]; ok {
		if err := json.Unmarshal(raw, &s.EmailVerificationClientTicket); err != nil {
			return fmt.Errorf("auth: decode %s: %w", keyEmailTicket, err)
		}
		delete(fields, keyEmailTicket)
	}
	if raw, ok := fields[keyEmailSolved]; ok {
		if err := json.Unmarshal(raw, &s.EmailVerificationSolved); err != nil {
			return fmt.Errorf("auth: decode %s: %w", keyEmailSolved, err)
		}
		delete(fields, keyEmailSolved)
	}
	if raw, ok := fields[keyAutoLogin]; ok {
		if err := json.Unmarshal(raw, &s.FirstSignUpAutoLogin); err != nil {
			return fmt.Errorf("auth: decode %s: %w", keyAutoLogin, err)
		}
		delete(fields, keyAutoLogin)
	}

	if len(fields) > 0 {
		s.extra = fields
	}
	return nil
}

// encodeState returns the canonical bytes stored in auth_attempts.state.
func encodeState(state State) ([]byte, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("auth: encode state: %w", err)
	}
	return encoded, nil
}

// decodeState parses a stored blob; an empty blob is the empty state.
func decodeState(data []byte) (State, error) {
	var state State
	if len(data) == 0 {
		data = []byte(emptyStateBytes)
	}
	err := json.Unmarshal(data, &state)
	return state, err
}

// withEmailTicket starts the email sub-flow on a copy of s.
func (s State) withEmailTicket(ticket string) State {
	s.EmailVerificationClientTicket = ticket
	s.EmailVerificationSolved = false
	return s
}

// withoutEmailTicket forgets the email sub-flow on a copy of s.
func (s State) withoutEmailTicket() State {
	return s.withEmailTicket("")
}

// solved marks the email sub-flow done on a copy of s.
func (s State) solved() State {
	s.EmailVerificationSolved = true
	return s
}
