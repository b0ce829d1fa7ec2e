// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// RateLimitStateTable represents the 'rate_limit_state' table
type RateLimitStateTable struct {
	Table     string
	Key       string
	LastReset string
	Count     string
}

// RateLimitState is the schema definition for rate_limit_state
var RateLimitState = RateLimitStateTable{
	Table:     "rate_limit_state",
	Key:       "key",
	LastReset: "last_reset",
	Count:     "count",
}
