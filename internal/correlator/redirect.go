package correlator

import (
	"fmt"
	"net/url"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/directory"
)

// Callback holds the parameters of a result redirect. A nil payload means the parameter was absent.
type Callback struct {
	Session     string
	Coordinates []byte
	Result      []byte
}

// FromQuery extracts the result parameters from a redirect query.
func FromQuery(q url.Values) Callback {
	cb := Callback{Session: q.Get(constants.SessionParam)}
	if q.Has(constants.EnrollmentParam) {
		cb.Coordinates = []byte(q.Get(constants.EnrollmentParam))
	}
	if q.Has(constants.VerificationParam) {
		cb.Result = []byte(q.Get(constants.VerificationParam))
	}
	return cb
}

// HasEnrollment reports whether the redirect carried a coordinates payload.
func (c Callback) HasEnrollment() bool { return c.Coordinates != nil }

// HasVerification reports whether the redirect carried a result payload.
func (c Callback) HasVerification() bool { return c.Result != nil }

// Enrollment decodes the coordinates payload.
func (c Callback) Enrollment() (directory.Geometry, error) {
	if !c.HasEnrollment() {
		return directory.Geometry{}, fmt.Errorf("%w: missing %s parameter", directory.ErrParse, constants.EnrollmentParam)
	}
	return DecodeEnrollmentPayload(c.Coordinates)
}

// Verification decodes the result payload; the second value is false when it was absent.
func (c Callback) Verification() (VerificationOutcome, bool) {
	if !c.HasVerification() {
		return VerificationOutcome{}, false
	}
	return DecodeVerificationPayload(c.Result), true
}

// EnrollmentRedirect builds the URL a capture process opens after an enrollment capture.
func EnrollmentRedirect(base string, g directory.Geometry, session string) (string, error) {
	payload, err := EncodeGeometry(g)
	if err != nil {
		return "", err
	}
	return redirect(base, constants.EnrollmentParam, payload, session)
}

// VerificationRedirect builds the URL a capture process opens after a verification capture.
func VerificationRedirect(base string, o VerificationOutcome, session string) (string, error) {
	payload, err := EncodeVerificationOutcome(o)
	if err != nil {
		return "", err
	}
	return redirect(base, constants.VerificationParam, payload, session)
}

func redirect(base, param string, payload []byte, session string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid redirect base %q: %w", base, err)
	}
	q := u.Query()
	q.Set(param, string(payload))
	if session != "" {
		q.Set(constants.SessionParam, session)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
