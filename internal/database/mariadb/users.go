package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/directory"
)

// UserStore is the MariaDB directory.Store.
type UserStore struct {
	pool *Pool
}

var _ database.Backend = (*UserStore)(nil)

// NewUserStore creates a store over pool. Closing the store closes the pool.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

type userRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Department string `db:"department"`
	database.FaceColumns
}

func (r userRow) record() (directory.UserRecord, error) {
	d, err := r.Descriptor()
	if err != nil {
		return directory.UserRecord{}, fmt.Errorf("user %s: %w", r.ID, err)
	}
	return directory.UserRecord{ID: r.ID, Name: r.Name, Department: r.Department, Face: d}, nil
}

// EnsureTable creates the users table if it does not exist.
func (s *UserStore) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  seq BIGINT NOT NULL AUTO_INCREMENT,
  id VARCHAR(64) NOT NULL PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  department VARCHAR(255) NOT NULL,
  face_kind VARCHAR(16) NOT NULL,
  face_legacy MEDIUMTEXT NULL,
  face_geometry JSON NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  UNIQUE KEY users_seq (seq)
) DEFAULT CHARSET=utf8mb4`
	if _, err := s.pool.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

const selectUsers = `SELECT id, name, department, face_kind, face_legacy, face_geometry FROM users`

// List returns all users in insertion order.
func (s *UserStore) List(ctx context.Context) ([]directory.UserRecord, error) {
	var rows []userRow
	if err := s.pool.db.SelectContext(ctx, &rows, selectUsers+` ORDER BY seq`); err != nil {
		return nil, directory.Unavailable("list users", err)
	}
	out := make([]directory.UserRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns one user.
func (s *UserStore) Get(ctx context.Context, id string) (*directory.UserRecord, error) {
	var row userRow
	err := s.pool.db.GetContext(ctx, &row, selectUsers+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, directory.ErrNotFound)
	}
	if err != nil {
		return nil, directory.Unavailable("get user", err)
	}
	rec, err := row.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts rec under a new uuid.
func (s *UserStore) Create(ctx context.Context, rec directory.UserRecord) (string, error) {
	face, err := database.EncodeFace(rec.Face)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.pool.db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, department, face_kind, face_legacy, face_geometry)
		VALUES (:id, :name, :department, :face_kind, :face_legacy, :face_geometry)
	`, map[string]any{
		"id":            id,
		"name":          rec.Name,
		"department":    rec.Department,
		"face_kind":     face.Kind,
		"face_legacy":   face.Legacy,
		"face_geometry": face.GeometryParam(),
	})
	if err != nil {
		return "", directory.Unavailable("insert user", err)
	}
	return id, nil
}

// Update changes the supplied fields only.
func (s *UserStore) Update(ctx context.Context, id string, p directory.Partial) error {
	if err := p.Validate(); err != nil {
		return err
	}

	params := map[string]any{"id": id}
	var sets []string
	if p.Name != nil {
		params["name"] = *p.Name
		sets = append(sets, "name = :name")
	}
	if p.Department != nil {
		params["department"] = *p.Department
		sets = append(sets, "department = :department")
	}

	res, err := s.pool.db.NamedExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = :id`, params)
	if err != nil {
		return directory.Unavailable("update user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return directory.Unavailable("rows affected", err)
	}
	if n > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the values are unchanged.
	return s.exists(ctx, id)
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.pool.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return directory.Unavailable("delete user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return directory.Unavailable("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, directory.ErrNotFound)
	}
	return nil
}

// Ping checks the connection.
func (s *UserStore) Ping(ctx context.Context) error {
	return directory.Unavailable("ping database", s.pool.db.PingContext(ctx))
}

// Close closes the underlying pool.
func (s *UserStore) Close() error {
	return s.pool.Close()
}

func (s *UserStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.pool.db.GetContext(ctx, &one, `SELECT 1 FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", id, directory.ErrNotFound)
	}
	if err != nil {
		return directory.Unavailable("check user", err)
	}
	return nil
}
