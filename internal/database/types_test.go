package database

import (
	"errors"
	"testing"

	"github.com/kozaktomas/face-registry/internal/directory"
)

func TestFaceColumnsRoundTrip(t *testing.T) {
	geom := directory.Geometry{FaceWidth: 120, FaceHeight: 140, Eyes: [2]directory.Point{{X: 30, Y: 50}, {X: 90, Y: 50}}}
	tests := []struct {
		name     string
		face     directory.Descriptor
		wantKind string
	}{
		{"legacy", directory.LegacyDescriptor("gASVJgAAAAAAAAB9lCiMCmZhY2Vfd2lkdGiUS3g="), FaceKindLegacy},
		{"geometry", directory.GeometryDescriptor(geom), FaceKindGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := EncodeFace(tt.face)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if cols.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", cols.Kind, tt.wantKind)
			}
			if (cols.Kind == FaceKindLegacy) != cols.Legacy.Valid {
				t.Errorf("legacy column validity does not match kind: %+v", cols)
			}
			if (cols.Kind == FaceKindGeometry) != (cols.Geometry != nil) {
				t.Errorf("geometry column presence does not match kind: %+v", cols)
			}

			back, err := cols.Descriptor()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if back != tt.face {
				t.Errorf("round trip changed descriptor: %+v -> %+v", tt.face, back)
			}
		})
	}
}

func TestEncodeFaceRejectsInvalid(t *testing.T) {
	for _, d := range []directory.Descriptor{
		{},
		directory.LegacyDescriptor("  "),
		directory.GeometryDescriptor(directory.Geometry{FaceWidth: 0, FaceHeight: 1}),
	} {
		if _, err := EncodeFace(d); !errors.Is(err, directory.ErrValidation) {
			t.Errorf("EncodeFace(%v): expected validation error, got %v", d.Kind(), err)
		}
	}
}

func TestFaceColumnsDescriptorErrors(t *testing.T) {
	tests := []struct {
		name string
		cols FaceColumns
	}{
		{"unknown kind", FaceColumns{Kind: "embedding"}},
		{"legacy without payload", FaceColumns{Kind: FaceKindLegacy}},
		{"broken geometry", FaceColumns{Kind: FaceKindGeometry, Geometry: []byte(`{"face_width":1}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cols.Descriptor(); !errors.Is(err, directory.ErrParse) {
				t.Errorf("expected parse error, got %v", err)
			}
		})
	}
}
