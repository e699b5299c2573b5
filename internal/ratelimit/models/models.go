// Package models holds rate limit results shared by stores and middleware.
package models

import "time"

// RateLimitResult is the outcome of one limit check.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is in seconds and only set when not allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Key builds the bucket key for a route class and client.
func Key(class, client string) string {
	return "ekyc:ratelimit:" + class + ":" + client
}
