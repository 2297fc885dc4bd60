// Package directory holds the biometric directory: user records, their face descriptors
// and the repository that keeps an in-memory view consistent with the backing store.
package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Geometry is the structured face descriptor produced by the capture process.
// Eyes are ordered left then right.
type Geometry struct {
	FaceWidth  int      `json:"face_width"`
	FaceHeight int      `json:"face_height"`
	Eyes       [2]Point `json:"eyes"`
}

// LeftEye returns the first eye coordinate.
func (g Geometry) LeftEye() Point { return g.Eyes[0] }

// RightEye returns the second eye coordinate.
func (g Geometry) RightEye() Point { return g.Eyes[1] }

// Validate checks the geometry invariants: strictly positive width and height.
// The eye count is enforced by the type and by ParseGeometry.
func (g Geometry) Validate() error {
	if g.FaceWidth <= 0 {
		return invalid("face_width must be positive, got %d", g.FaceWidth)
	}
	if g.FaceHeight <= 0 {
		return invalid("face_height must be positive, got %d", g.FaceHeight)
	}
	return nil
}

type pointWire struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

type geometryWire struct {
	FaceWidth  *int        `json:"face_width"`
	FaceHeight *int        `json:"face_height"`
	Eyes       []pointWire `json:"eyes"`
}

// ParseGeometry decodes a geometry object strictly.
// Malformed JSON or missing fields yield ErrParse; a wrong eye count or
// non-positive dimensions yield ErrValidation. No partial value is returned on failure.
func ParseGeometry(data []byte) (Geometry, error) {
	var w geometryWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Geometry{}, fmt.Errorf("%w: geometry: %w", ErrParse, err)
	}
	if dec.More() {
		return Geometry{}, fmt.Errorf("%w: geometry: trailing data", ErrParse)
	}

	switch {
	case w.FaceWidth == nil:
		return Geometry{}, fmt.Errorf("%w: geometry: missing face_width", ErrParse)
	case w.FaceHeight == nil:
		return Geometry{}, fmt.Errorf("%w: geometry: missing face_height", ErrParse)
	case w.Eyes == nil:
		return Geometry{}, fmt.Errorf("%w: geometry: missing eyes", ErrParse)
	}
	if len(w.Eyes) != 2 {
		return Geometry{}, invalid("exactly two eyes required, got %d", len(w.Eyes))
	}

	g := Geometry{FaceWidth: *w.FaceWidth, FaceHeight: *w.FaceHeight}
	for i, eye := range w.Eyes {
		if eye.X == nil || eye.Y == nil {
			return Geometry{}, fmt.Errorf("%w: geometry: eye %d missing coordinate", ErrParse, i)
		}
		g.Eyes[i] = Point{X: *eye.X, Y: *eye.Y}
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// DescriptorKind tags the FaceDescriptor variant.
type DescriptorKind int

const (
	DescriptorNone DescriptorKind = iota
	DescriptorLegacy
	DescriptorGeometry
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorLegacy:
		return "legacy"
	case DescriptorGeometry:
		return "geometry"
	default:
		return "none"
	}
}

// Descriptor is the face descriptor tagged union. The legacy variant is an opaque
// encoded blob from the historical format and is never decomposed.
type Descriptor struct {
	kind     DescriptorKind
	legacy   string
	geometry Geometry
}

// LegacyDescriptor wraps a historical encoded blob.
func LegacyDescriptor(blob string) Descriptor {
	return Descriptor{kind: DescriptorLegacy, legacy: blob}
}

// GeometryDescriptor wraps a structured geometry.
func GeometryDescriptor(g Geometry) Descriptor {
	return Descriptor{kind: DescriptorGeometry, geometry: g}
}

// Kind returns the variant tag.
func (d Descriptor) Kind() DescriptorKind { return d.kind }

// Legacy returns the encoded blob when d is the legacy variant.
func (d Descriptor) Legacy() (string, bool) {
	return d.legacy, d.kind == DescriptorLegacy
}

// Geometry returns the structured geometry when d is the geometry variant.
func (d Descriptor) Geometry() (Geometry, bool) {
	return d.geometry, d.kind == DescriptorGeometry
}

// Validate checks the invariants of the active variant.
func (d Descriptor) Validate() error {
	switch d.kind {
	case DescriptorLegacy:
		if strings.TrimSpace(d.legacy) == "" {
			return invalid("legacy face descriptor is empty")
		}
		return nil
	case DescriptorGeometry:
		return d.geometry.Validate()
	default:
		return invalid("face descriptor is required")
	}
}

// MarshalJSON encodes the legacy variant as a JSON string and the geometry variant as an object.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case DescriptorLegacy:
		return json.Marshal(d.legacy)
	case DescriptorGeometry:
		return json.Marshal(d.geometry)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON dispatches on the JSON token kind: string is legacy, object is geometry.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = Descriptor{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var blob string
		if err := json.Unmarshal(trimmed, &blob); err != nil {
			return fmt.Errorf("%w: legacy descriptor: %w", ErrParse, err)
		}
		*d = LegacyDescriptor(blob)
		return nil
	case '{':
		g, err := ParseGeometry(trimmed)
		if err != nil {
			return err
		}
		*d = GeometryDescriptor(g)
		return nil
	default:
		return invalid("face descriptor must be a string or an object")
	}
}

// UserRecord is a directory entry. ID is assigned by the store and never changes.
type UserRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Department string     `json:"department"`
	Face       Descriptor `json:"face"`
}

// Validate checks the fields a caller supplies on creation.
func (r UserRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name is required")
	}
	if strings.TrimSpace(r.Department) == "" {
		return invalid("department is required")
	}
	return r.Face.Validate()
}

// Partial is a partial update: nil fields are left unchanged.
type Partial struct {
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
}

// IsEmpty reports whether no field is supplied.
func (p Partial) IsEmpty() bool {
	return p.Name == nil && p.Department == nil
}

// Validate rejects supplied-but-empty fields and updates that change nothing.
func (p Partial) Validate() error {
	if p.IsEmpty() {
		return invalid("no fields to update")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name must not be empty")
	}
	if p.Department != nil && strings.TrimSpace(*p.Department) == "" {
		return invalid("department must not be empty")
	}
	return nil
}

// Apply returns rec with the supplied fields replaced.
func (p Partial) Apply(rec UserRecord) UserRecord {
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Department != nil {
		rec.Department = *p.Department
	}
	return rec
}

func (p Partial) normalized() Partial {
	var out Partial
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		out.Name = &v
	}
	if p.Department != nil {
		v := strings.TrimSpace(*p.Department)
		out.Department = &v
	}
	return out
}
