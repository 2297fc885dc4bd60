package correlator

import (
	"strings"

	"github.com/kozaktomas/face-registry/internal/directory"
)

// Status is the verification verdict.
type Status string

const (
	StatusGranted Status = "granted"
	StatusDenied  Status = "denied"
	StatusError   Status = "error"
)

// Messages shown when the payload itself is unusable.
const (
	MessageParseFailure  = "Error parsing verification result"
	MessageMissingStatus = "Verification result has no status"
	MessageNoResult      = "No verification result"
)

// MatchedUser identifies the directory record a verification matched.
type MatchedUser struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// VerificationOutcome is a decoded verification result. MatchedUser is only set when
// the status is StatusGranted.
type VerificationOutcome struct {
	Status      Status              `json:"status"`
	Message     string              `json:"message"`
	MatchedUser *MatchedUser        `json:"matched_user,omitempty"`
	Geometry    *directory.Geometry `json:"geometry,omitempty"`
}

// Granted reports whether access was granted.
func (o VerificationOutcome) Granted() bool {
	return o.Status == StatusGranted
}

func parseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusGranted:
		return StatusGranted, true
	case StatusDenied:
		return StatusDenied, true
	case StatusError:
		return StatusError, true
	}
	return "", false
}

func defaultMessage(s Status) string {
	switch s {
	case StatusGranted:
		return "Access granted"
	case StatusDenied:
		return "Access denied: face not recognized"
	default:
		return "Verification failed"
	}
}

func errorOutcome(message string) VerificationOutcome {
	return VerificationOutcome{Status: StatusError, Message: message}
}
