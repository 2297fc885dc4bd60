package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/directory"
)

// Values of the face_kind column.
const (
	FaceKindLegacy   = "legacy"
	FaceKindGeometry = "geometry"
)

// FaceColumns is the SQL representation of a face descriptor: a kind tag and one
// populated payload column. Geometry is stored as JSON.
type FaceColumns struct {
	Kind     string         `db:"face_kind"`
	Legacy   sql.NullString `db:"face_legacy"`
	Geometry []byte         `db:"face_geometry"`
}

// EncodeFace splits a descriptor into its column values.
func EncodeFace(d directory.Descriptor) (FaceColumns, error) {
	if err := d.Validate(); err != nil {
		return FaceColumns{}, err
	}
	switch d.Kind() {
	case directory.DescriptorLegacy:
		blob, _ := d.Legacy()
		return FaceColumns{Kind: FaceKindLegacy, Legacy: sql.NullString{String: blob, Valid: true}}, nil
	case directory.DescriptorGeometry:
		g, _ := d.Geometry()
		data, err := json.Marshal(g)
		if err != nil {
			return FaceColumns{}, fmt.Errorf("marshal geometry: %w", err)
		}
		return FaceColumns{Kind: FaceKindGeometry, Geometry: data}, nil
	default:
		return FaceColumns{}, fmt.Errorf("%w: unsupported descriptor kind %s", directory.ErrValidation, d.Kind())
	}
}

// Descriptor rebuilds the descriptor from stored columns.
func (c FaceColumns) Descriptor() (directory.Descriptor, error) {
	switch c.Kind {
	case FaceKindLegacy:
		if !c.Legacy.Valid {
			return directory.Descriptor{}, fmt.Errorf("%w: legacy face without payload", directory.ErrParse)
		}
		return directory.LegacyDescriptor(c.Legacy.String), nil
	case FaceKindGeometry:
		g, err := directory.ParseGeometry(c.Geometry)
		if err != nil {
			return directory.Descriptor{}, fmt.Errorf("stored geometry: %w", err)
		}
		return directory.GeometryDescriptor(g), nil
	default:
		return directory.Descriptor{}, fmt.Errorf("%w: unknown face kind %q", directory.ErrParse, c.Kind)
	}
}

// GeometryParam is the face_geometry query argument: NULL or JSON text.
// JSON is passed as a string so drivers do not send it as binary.
func (c FaceColumns) GeometryParam() any {
	if c.Geometry == nil {
		return nil
	}
	return string(c.Geometry)
}
