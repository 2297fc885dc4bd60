// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Capture constants
const (
	// DefaultGuardDuration is how long a capture guard stays held after a trigger
	// before it is forcibly released, whether or not a result arrived.
	DefaultGuardDuration = 15 * time.Second

	// DefaultTriggerTimeout bounds a single call to a capture trigger endpoint
	DefaultTriggerTimeout = 10 * time.Second
)

// Redirect payload query parameters used by the capture process
const (
	// EnrollmentParam carries the captured geometry on the enrollment redirect
	EnrollmentParam = "coordinates"

	// VerificationParam carries the verification outcome on the login redirect
	VerificationParam = "result"

	// SessionParam carries the capture session token
	SessionParam = "session"
)

// Store constants
const (
	// DefaultStoreTimeout bounds a single remote store request
	DefaultStoreTimeout = 15 * time.Second
)
