package model

import "time"

// User represents an account. Username is the immutable identity.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Not exposed in API responses
	FullName     string `json:"fullName"`
	// LastSessionInvalidation is the revocation watermark: tokens issued
	// before it are dead. Second granularity, never decreases.
	LastSessionInvalidation time.Time `json:"-"`
}
