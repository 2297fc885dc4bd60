// Package capture runs the single-flight capture sessions that launch the external
// face capture process for enrollment and verification.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-registry/internal/directory"
)

// Kind identifies which capture flow a session belongs to.
type Kind string

const (
	KindEnroll Kind = "enroll"
	KindVerify Kind = "verify"
)

// Kinds lists every capture kind.
var Kinds = []Kind{KindEnroll, KindVerify}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEnroll, KindVerify:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown capture kind %q", directory.ErrValidation, s)
}

// Status is the lifecycle state of a capture session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusConflict  Status = "conflict"
	StatusTimedOut  Status = "timed_out"
)

// Result describes what a single Trigger call did.
type Result string

const (
	ResultStarted           Result = "started"
	ResultAlreadyInProgress Result = "already_in_progress"
	ResultConflict          Result = "conflict"
	ResultFailed            Result = "failed"
)

// Operator-facing notices.
const (
	NoticeStarted    = "Capture started. Follow the instructions on the capture station."
	NoticeInProgress = "A capture is already in progress. Please wait for it to finish."
	NoticeTimedOut   = "Capture guard expired."
	NoticeDelivered  = "Capture result received."
)

// ErrStaleResult is returned when a delivered result does not belong to the latest session.
var ErrStaleResult = errors.New("stale capture result")

// SessionHandle is a snapshot of a session returned to callers.
type SessionHandle struct {
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	Result    Result    `json:"result,omitempty"`
	Token     string    `json:"token,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	ReleaseAt time.Time `json:"release_at,omitzero"`
	Message   string    `json:"message,omitempty"`
}

// StartRequest is passed to a Launcher when a session starts.
type StartRequest struct {
	Kind        Kind
	Token       string
	CallbackURL string
}

// Launcher starts the external capture process. It returns an error wrapping
// directory.ErrConflict when the process reports it is already busy.
// The capture result is delivered later, out of band.
type Launcher interface {
	Start(ctx context.Context, req StartRequest) error
}
