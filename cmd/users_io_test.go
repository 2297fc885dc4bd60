package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/kozaktomas/face-registry/internal/directory"
)

func TestReadUsersFile(t *testing.T) {
	input := `users:
  - id: ignored
    name: Alice
    department: R&D
    face:
      face_width: 120
      face_height: 140
      eyes: [{x: 30, y: 50}, {x: 90, y: 50}]
  - name: Bob
    department: Ops
    face: gASVblob
`
	records, err := readUsersFile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "" {
		t.Errorf("file IDs must be ignored, got %q", records[0].ID)
	}
	g, ok := records[0].Face.Geometry()
	if !ok || g.FaceWidth != 120 || g.RightEye().X != 90 {
		t.Errorf("unexpected geometry %+v", records[0].Face)
	}
	if blob, ok := records[1].Face.Legacy(); !ok || blob != "gASVblob" {
		t.Errorf("unexpected legacy face %+v", records[1].Face)
	}
}

func TestReadUsersFile_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"one eye", "users:\n  - name: A\n    department: D\n    face: {face_width: 1, face_height: 1, eyes: [{x: 1, y: 1}]}\n", directory.ErrValidation},
		{"no face", "users:\n  - name: A\n    department: D\n", directory.ErrValidation},
		{"no department", "users:\n  - name: A\n    face: blob\n", directory.ErrValidation},
		{"list face", "users:\n  - name: A\n    department: D\n    face: [1, 2]\n", directory.ErrValidation},
		{"not yaml", "users: [", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readUsersFile(strings.NewReader(tc.input))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestWriteUsersFile_RoundTrip(t *testing.T) {
	g := directory.Geometry{FaceWidth: 120, FaceHeight: 140, Eyes: [2]directory.Point{{X: 30, Y: 50}, {X: 90, Y: 50}}}
	records := []directory.UserRecord{
		{ID: "u1", Name: "Alice", Department: "R&D", Face: directory.GeometryDescriptor(g)},
		{ID: "u2", Name: "Bob", Department: "Ops", Face: directory.LegacyDescriptor("gASVblob")},
	}

	var buf bytes.Buffer
	if err := writeUsersFile(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "id: u1") {
		t.Errorf("export should keep IDs:\n%s", buf.String())
	}

	back, err := readUsersFile(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got, _ := back[0].Face.Geometry(); got != g {
		t.Errorf("geometry changed: %+v", got)
	}
	if back[1].Name != "Bob" || back[1].Department != "Ops" {
		t.Errorf("unexpected record %+v", back[1])
	}
}

func TestFaceFromFlags(t *testing.T) {
	if _, err := faceFromFlags("", ""); err == nil {
		t.Error("expected an error without a face")
	}
	if _, err := faceFromFlags(`{"face_width":1}`, "blob"); err == nil {
		t.Error("expected an error with both flags")
	}
	d, err := faceFromFlags("", "blob")
	if err != nil || d.Kind() != directory.DescriptorLegacy {
		t.Errorf("unexpected descriptor %+v, %v", d, err)
	}
}

func TestSortUsers(t *testing.T) {
	users := []directory.UserRecord{
		{Name: "Žofie", Department: "Ops"},
		{Name: "adam", Department: "R&D"},
		{Name: "Bob", Department: "Finance"},
	}

	sortUsers(users, "name")
	if users[0].Name != "adam" || users[2].Name != "Žofie" {
		t.Errorf("unexpected name order %v", users)
	}
	sortUsers(users, "-department")
	if users[0].Department != "R&D" || users[2].Department != "Finance" {
		t.Errorf("unexpected department order %v", users)
	}
}
