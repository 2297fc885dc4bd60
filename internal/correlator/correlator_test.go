package correlator

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/kozaktomas/face-registry/internal/directory"
)

func sampleGeometry() directory.Geometry {
	return directory.Geometry{
		FaceWidth:  120,
		FaceHeight: 140,
		Eyes:       [2]directory.Point{{X: 30, Y: 50}, {X: 90, Y: 50}},
	}
}

func TestDecodeEnrollmentPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    directory.Geometry
		wantErr error
	}{
		{
			name: "valid",
			raw:  `{"face_width":120,"face_height":140,"eyes":[{"x":30,"y":50},{"x":90,"y":50}]}`,
			want: sampleGeometry(),
		},
		{
			name: "python spacing",
			raw:  `{"face_width": 120, "face_height": 140, "eyes": [{"x": 30, "y": 50}, {"x": 90, "y": 50}]}`,
			want: sampleGeometry(),
		},
		{"empty", "", directory.Geometry{}, directory.ErrParse},
		{"not json", "coordinates", directory.Geometry{}, directory.ErrParse},
		{"array", `[1,2]`, directory.Geometry{}, directory.ErrParse},
		{"missing eyes", `{"face_width":120,"face_height":140}`, directory.Geometry{}, directory.ErrParse},
		{"missing width", `{"face_height":140,"eyes":[{"x":1,"y":1},{"x":2,"y":2}]}`, directory.Geometry{}, directory.ErrParse},
		{"eye without y", `{"face_width":1,"face_height":1,"eyes":[{"x":1},{"x":2,"y":2}]}`, directory.Geometry{}, directory.ErrParse},
		{"string width", `{"face_width":"120","face_height":140,"eyes":[{"x":1,"y":1},{"x":2,"y":2}]}`, directory.Geometry{}, directory.ErrParse},
		{"one eye", `{"face_width":120,"face_height":140,"eyes":[{"x":30,"y":50}]}`, directory.Geometry{}, directory.ErrValidation},
		{"three eyes", `{"face_width":120,"face_height":140,"eyes":[{"x":1,"y":1},{"x":2,"y":2},{"x":3,"y":3}]}`, directory.Geometry{}, directory.ErrValidation},
		{"zero height", `{"face_width":120,"face_height":0,"eyes":[{"x":1,"y":1},{"x":2,"y":2}]}`, directory.Geometry{}, directory.ErrValidation},
		{"negative width", `{"face_width":-5,"face_height":10,"eyes":[{"x":1,"y":1},{"x":2,"y":2}]}`, directory.Geometry{}, directory.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEnrollmentPayload([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if got != (directory.Geometry{}) {
					t.Errorf("expected no partial value, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	geometries := []directory.Geometry{
		sampleGeometry(),
		{FaceWidth: 1, FaceHeight: 1, Eyes: [2]directory.Point{{X: -3, Y: 0}, {X: 0, Y: -7}}},
		{FaceWidth: 4096, FaceHeight: 2160, Eyes: [2]directory.Point{{X: 1000, Y: 900}, {X: 1400, Y: 905}}},
	}
	for _, g := range geometries {
		raw, err := EncodeGeometry(g)
		if err != nil {
			t.Fatalf("encode %+v: %v", g, err)
		}
		back, err := DecodeEnrollmentPayload(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if back != g {
			t.Errorf("round trip changed geometry: %+v -> %+v", g, back)
		}
	}
}

func TestEncodeGeometryRejectsInvalid(t *testing.T) {
	_, err := EncodeGeometry(directory.Geometry{FaceWidth: 0, FaceHeight: 10})
	if !errors.Is(err, directory.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDecodeVerificationPayload(t *testing.T) {
	geom := sampleGeometry()
	tests := []struct {
		name        string
		raw         string
		wantStatus  Status
		wantMessage string
		wantUser    *MatchedUser
		wantGeom    *directory.Geometry
	}{
		{
			name:        "granted flattened",
			raw:         `{"status":"granted","message":"Access granted","name":"Alice","department":"R&D","id":"64f0c1","coordinates":{"face_width":120,"face_height":140,"eyes":[{"x":30,"y":50},{"x":90,"y":50}]}}`,
			wantStatus:  StatusGranted,
			wantMessage: "Access granted",
			wantUser:    &MatchedUser{ID: "64f0c1", Name: "Alice", Department: "R&D"},
			wantGeom:    &geom,
		},
		{
			name:        "granted nested",
			raw:         `{"status":"GRANTED","matched_user":{"name":"Bob","department":"Ops"}}`,
			wantStatus:  StatusGranted,
			wantMessage: "Access granted",
			wantUser:    &MatchedUser{Name: "Bob", Department: "Ops"},
		},
		{
			name:        "denied ignores user",
			raw:         `{"status":"denied","message":"Face not recognized","name":"Mallory"}`,
			wantStatus:  StatusDenied,
			wantMessage: "Face not recognized",
		},
		{
			name:        "denied with geometry key",
			raw:         `{"status":"denied","geometry":{"face_width":120,"face_height":140,"eyes":[{"x":30,"y":50},{"x":90,"y":50}]}}`,
			wantStatus:  StatusDenied,
			wantMessage: "Access denied: face not recognized",
			wantGeom:    &geom,
		},
		{
			name:        "reported error",
			raw:         `{"status":"error","message":"camera unavailable"}`,
			wantStatus:  StatusError,
			wantMessage: "camera unavailable",
		},
		{
			name:        "missing status",
			raw:         `{"message":"hello","name":"Alice"}`,
			wantStatus:  StatusError,
			wantMessage: MessageMissingStatus,
		},
		{
			name:        "malformed json",
			raw:         `{"status":"granted"`,
			wantStatus:  StatusError,
			wantMessage: MessageParseFailure,
		},
		{
			name:        "empty",
			raw:         "",
			wantStatus:  StatusError,
			wantMessage: MessageNoResult,
		},
		{
			name:        "unknown status",
			raw:         `{"status":"maybe"}`,
			wantStatus:  StatusError,
			wantMessage: `Unknown verification status "maybe"`,
		},
		{
			name:        "one eye geometry",
			raw:         `{"status":"granted","name":"Alice","coordinates":{"face_width":1,"face_height":1,"eyes":[{"x":1,"y":1}]}}`,
			wantStatus:  StatusError,
			wantMessage: MessageParseFailure,
		},
		{
			name:        "null coordinates",
			raw:         `{"status":"denied","coordinates":null}`,
			wantStatus:  StatusDenied,
			wantMessage: "Access denied: face not recognized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeVerificationPayload([]byte(tt.raw))
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Message == "" {
				t.Error("message must never be empty")
			}
			if got.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMessage)
			}
			switch {
			case tt.wantUser == nil && got.MatchedUser != nil:
				t.Errorf("unexpected matched user %+v", got.MatchedUser)
			case tt.wantUser != nil && (got.MatchedUser == nil || *got.MatchedUser != *tt.wantUser):
				t.Errorf("matched user = %+v, want %+v", got.MatchedUser, tt.wantUser)
			}
			switch {
			case tt.wantGeom == nil && got.Geometry != nil:
				t.Errorf("unexpected geometry %+v", got.Geometry)
			case tt.wantGeom != nil && (got.Geometry == nil || *got.Geometry != *tt.wantGeom):
				t.Errorf("geometry = %+v, want %+v", got.Geometry, tt.wantGeom)
			}
		})
	}
}

func TestVerificationOutcomeRoundTrip(t *testing.T) {
	geom := sampleGeometry()
	outcomes := []VerificationOutcome{
		{Status: StatusGranted, Message: "Welcome", MatchedUser: &MatchedUser{ID: "1", Name: "Alice", Department: "R&D"}, Geometry: &geom},
		{Status: StatusDenied, Message: "Access denied: face not recognized"},
		{Status: StatusError, Message: "camera unavailable"},
	}
	for _, o := range outcomes {
		raw, err := EncodeVerificationOutcome(o)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got := DecodeVerificationPayload(raw)
		if got.Status != o.Status || got.Message != o.Message {
			t.Errorf("round trip %s: got %+v", raw, got)
		}
		if (got.MatchedUser == nil) != (o.MatchedUser == nil) {
			t.Errorf("round trip %s: matched user mismatch", raw)
		}
		if o.Geometry != nil && (got.Geometry == nil || *got.Geometry != *o.Geometry) {
			t.Errorf("round trip %s: geometry mismatch", raw)
		}
	}
}

func TestFromQuery(t *testing.T) {
	q := url.Values{}
	q.Set("coordinates", `{"face_width":120,"face_height":140,"eyes":[{"x":30,"y":50},{"x":90,"y":50}]}`)
	q.Set("session", "tok-1")

	cb := FromQuery(q)
	if cb.Session != "tok-1" {
		t.Errorf("session = %q", cb.Session)
	}
	if !cb.HasEnrollment() || cb.HasVerification() {
		t.Fatalf("unexpected payload presence %+v", cb)
	}
	g, err := cb.Enrollment()
	if err != nil {
		t.Fatalf("enrollment: %v", err)
	}
	if g != sampleGeometry() {
		t.Errorf("geometry = %+v", g)
	}
	if _, ok := cb.Verification(); ok {
		t.Error("verification should be absent")
	}
}

func TestFromQueryEmptyParameter(t *testing.T) {
	cb := FromQuery(url.Values{"coordinates": {""}})
	if !cb.HasEnrollment() {
		t.Fatal("empty parameter is still present")
	}
	if _, err := cb.Enrollment(); !errors.Is(err, directory.ErrParse) {
		t.Errorf("expected parse error, got %v", err)
	}

	if _, err := FromQuery(url.Values{}).Enrollment(); !errors.Is(err, directory.ErrParse) {
		t.Errorf("missing parameter: expected parse error, got %v", err)
	}
}

func TestRedirects(t *testing.T) {
	link, err := EnrollmentRedirect("http://localhost:8080/signup", sampleGeometry(), "tok-2")
	if err != nil {
		t.Fatalf("enrollment redirect: %v", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse %q: %v", link, err)
	}
	if u.Path != "/signup" {
		t.Errorf("path = %q", u.Path)
	}
	cb := FromQuery(u.Query())
	g, err := cb.Enrollment()
	if err != nil || g != sampleGeometry() || cb.Session != "tok-2" {
		t.Errorf("enrollment redirect did not round trip: %+v %v", cb, err)
	}

	link, err = VerificationRedirect("http://localhost:8080/login", VerificationOutcome{Status: StatusDenied, Message: "nope"}, "")
	if err != nil {
		t.Fatalf("verification redirect: %v", err)
	}
	if strings.Contains(link, "session=") {
		t.Errorf("unexpected session in %q", link)
	}
	u, _ = url.Parse(link)
	o, ok := FromQuery(u.Query()).Verification()
	if !ok || o.Status != StatusDenied || o.Message != "nope" {
		t.Errorf("verification redirect did not round trip: %+v", o)
	}

	if _, err := EnrollmentRedirect("http://x", directory.Geometry{}, ""); !errors.Is(err, directory.ErrValidation) {
		t.Errorf("invalid geometry: expected validation error, got %v", err)
	}
}
