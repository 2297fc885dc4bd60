// Package correlator turns out-of-band capture results into validated values:
// enrollment geometry for pre-filling the signup form and verification outcomes for display.
package correlator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-registry/internal/directory"
)

// DecodeEnrollmentPayload decodes the coordinates payload of an enrollment capture.
// Malformed JSON or missing fields yield directory.ErrParse, invariant violations yield
// directory.ErrValidation. No partial geometry is returned on failure.
func DecodeEnrollmentPayload(raw []byte) (directory.Geometry, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return directory.Geometry{}, fmt.Errorf("%w: empty enrollment payload", directory.ErrParse)
	}
	g, err := directory.ParseGeometry(raw)
	if err != nil {
		return directory.Geometry{}, fmt.Errorf("decode enrollment payload: %w", err)
	}
	return g, nil
}

// EncodeGeometry is the inverse of DecodeEnrollmentPayload.
func EncodeGeometry(g directory.Geometry) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	return data, nil
}

type matchedUserWire struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// verificationWire accepts both the flattened form emitted by the capture scripts
// and a nested matched_user object.
type verificationWire struct {
	Status      *string          `json:"status"`
	Message     string           `json:"message"`
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Department  string           `json:"department"`
	MatchedUser *matchedUserWire `json:"matched_user"`
	Coordinates json.RawMessage  `json:"coordinates"`
	Geometry    json.RawMessage  `json:"geometry"`
}

// DecodeVerificationPayload decodes the result payload of a verification capture.
// It never fails: any problem yields an outcome with StatusError and a non-empty message.
func DecodeVerificationPayload(raw []byte) VerificationOutcome {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errorOutcome(MessageNoResult)
	}

	var w verificationWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return errorOutcome(MessageParseFailure)
	}
	if w.Status == nil {
		return errorOutcome(MessageMissingStatus)
	}

	status, ok := parseStatus(*w.Status)
	if !ok {
		return errorOutcome(fmt.Sprintf("Unknown verification status %q", *w.Status))
	}

	out := VerificationOutcome{Status: status, Message: strings.TrimSpace(w.Message)}

	geomRaw := w.Coordinates
	if isAbsent(geomRaw) {
		geomRaw = w.Geometry
	}
	if !isAbsent(geomRaw) {
		g, err := directory.ParseGeometry(geomRaw)
		if err != nil {
			return errorOutcome(MessageParseFailure)
		}
		out.Geometry = &g
	}

	if status == StatusGranted {
		switch {
		case w.MatchedUser != nil:
			out.MatchedUser = matchedUser(*w.MatchedUser)
		case w.Name != "" || w.Department != "" || w.ID != "":
			out.MatchedUser = matchedUser(matchedUserWire{ID: w.ID, Name: w.Name, Department: w.Department})
		}
	}

	if out.Message == "" {
		out.Message = defaultMessage(status)
	}
	return out
}

// EncodeVerificationOutcome renders an outcome in the flattened wire form the capture
// scripts emit, so DecodeVerificationPayload reads it back unchanged.
func EncodeVerificationOutcome(o VerificationOutcome) ([]byte, error) {
	w := struct {
		Status      Status              `json:"status"`
		Message     string              `json:"message"`
		ID          string              `json:"id,omitempty"`
		Name        string              `json:"name,omitempty"`
		Department  string              `json:"department,omitempty"`
		Coordinates *directory.Geometry `json:"coordinates,omitempty"`
	}{
		Status:      o.Status,
		Message:     o.Message,
		Coordinates: o.Geometry,
	}
	if o.MatchedUser != nil {
		w.ID, w.Name, w.Department = o.MatchedUser.ID, o.MatchedUser.Name, o.MatchedUser.Department
	}
	if o.Geometry != nil {
		if err := o.Geometry.Validate(); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode verification outcome: %w", err)
	}
	return data, nil
}

func matchedUser(w matchedUserWire) *MatchedUser {
	return &MatchedUser{
		ID:         strings.TrimSpace(w.ID),
		Name:       strings.TrimSpace(w.Name),
		Department: strings.TrimSpace(w.Department),
	}
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
