package postgres

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

// UserStore is the PostgreSQL directory.Store. Records are listed in insertion order.
type UserStore struct {
	pool *Pool
}

var _ database.Backend = (*UserStore)(nil)

// NewUserStore creates a store over pool. Closing the store closes the pool.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

const selectUsers = `SELECT id, name, department, face_kind, face_legacy, face_geometry FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (directory.UserRecord, error) {
	var (
		rec  directory.UserRecord
		face database.FaceColumns
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Department, &face.Kind, &face.Legacy, &face.Geometry); err != nil {
		return directory.UserRecord{}, err
	}
	d, err := face.Descriptor()
	if err != nil {
		return directory.UserRecord{}, fmt.Errorf("user %s: %w", rec.ID, err)
	}
	rec.Face = d
	return rec, nil
}

// List returns all users in insertion order.
func (s *UserStore) List(ctx context.Context) ([]directory.UserRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, selectUsers+` ORDER BY seq`)
	if err != nil {
		return nil, directory.Unavailable("list users", err)
	}
	defer rows.Close()

	var out []directory.UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, directory.Unavailable("scan user", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, directory.Unavailable("iterate users", err)
	}
	return out, nil
}

// Get returns one user.
func (s *UserStore) Get(ctx context.Context, id string) (*directory.UserRecord, error) {
	rec, err := scanUser(s.pool.db.QueryRowContext(ctx, selectUsers+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, directory.ErrNotFound)
	}
	if err != nil {
		return nil, directory.Unavailable("get user", err)
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
	_, err = s.pool.db.ExecContext(ctx, `
		INSERT INTO users (id, name, department, face_kind, face_legacy, face_geometry)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, rec.Name, rec.Department, face.Kind, face.Legacy, face.GeometryParam())
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

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	if p.Name != nil {
		args = append(args, *p.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if p.Department != nil {
		args = append(args, *p.Department)
		sets = append(sets, fmt.Sprintf("department = $%d", len(args)))
	}

	res, err := s.pool.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return directory.Unavailable("update user", err)
	}
	return expectRow(res, id)
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.pool.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return directory.Unavailable("delete user", err)
	}
	return expectRow(res, id)
}

// Ping checks the connection.
func (s *UserStore) Ping(ctx context.Context) error {
	return directory.Unavailable("ping database", s.pool.db.PingContext(ctx))
}

// Close closes the underlying pool.
func (s *UserStore) Close() error {
	return s.pool.Close()
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return directory.Unavailable("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, directory.ErrNotFound)
	}
	return nil
}
