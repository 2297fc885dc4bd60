// Package remotestore is a directory.Store backed by the REST directory service
// (GET /users, POST /save, PUT and DELETE /users/{id}, GET /test-db).
package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

func init() {
	database.RegisterBackend(config.BackendRemote, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.Backend, error) {
		c, err := NewClient(cfg.Store.URL, cfg.Store.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return database.NopCloser(c), nil
	})
}

// Client talks to the directory service.
type Client struct {
	parsedURL *url.URL
	http      *http.Client
	logger    *zap.Logger
}

var _ directory.Store = (*Client)(nil)

// NewClient creates a client for the service at rawURL. A zero timeout uses the default.
func NewClient(rawURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("directory service URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid directory service URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid directory service URL scheme %q", parsed.Scheme)
	}
	if timeout <= 0 {
		timeout = constants.DefaultStoreTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		parsedURL: parsed,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.Named("remotestore"),
	}, nil
}

func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// objectID accepts a plain string id or an extended-JSON {"$oid": "..."} object.
type objectID string

func (o *objectID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = ""
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var ext struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(data, &ext); err != nil {
			return fmt.Errorf("object id: %w", err)
		}
		*o = objectID(ext.OID)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	*o = objectID(s)
	return nil
}

// userDTO is a record on the wire. The service emits "_id"; "id" is accepted too.
type userDTO struct {
	MongoID    objectID             `json:"_id"`
	ID         objectID             `json:"id"`
	Name       string               `json:"name"`
	Department string               `json:"department"`
	Face       directory.Descriptor `json:"face"`
}

func (u userDTO) record() directory.UserRecord {
	id := u.MongoID
	if id == "" {
		id = u.ID
	}
	return directory.UserRecord{ID: string(id), Name: u.Name, Department: u.Department, Face: u.Face}
}

type saveRequest struct {
	Name       string               `json:"name"`
	Department string               `json:"department"`
	Face       directory.Descriptor `json:"face"`
}

type saveResponse struct {
	Message    string   `json:"message"`
	ID         objectID `json:"id"`
	MongoID    objectID `json:"_id"`
	InsertedID objectID `json:"inserted_id"`
}

func (r saveResponse) id() string {
	for _, id := range []objectID{r.ID, r.MongoID, r.InsertedID} {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

// List returns all users in service order.
func (c *Client) List(ctx context.Context) ([]directory.UserRecord, error) {
	users, err := doGetJSON[[]userDTO](ctx, c, "users")
	if err != nil {
		return nil, directory.Unavailable("list users", err)
	}
	out := make([]directory.UserRecord, 0, len(*users))
	for _, u := range *users {
		rec := u.record()
		if rec.ID == "" {
			c.logger.Warn("skipping user without id", zap.String("name", rec.Name))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns one user.
func (c *Client) Get(ctx context.Context, id string) (*directory.UserRecord, error) {
	u, err := doGetJSON[userDTO](ctx, c, "users/"+url.PathEscape(id))
	if err != nil {
		return nil, directory.Unavailable("get user", err)
	}
	rec := u.record()
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

// Create posts to /save. The service may omit the new id; it is then looked up
// as the last listed record with the same name and department.
func (c *Client) Create(ctx context.Context, rec directory.UserRecord) (string, error) {
	resp, err := doRequestJSON[saveResponse](ctx, c, http.MethodPost, "save",
		saveRequest{Name: rec.Name, Department: rec.Department, Face: rec.Face},
		http.StatusOK, http.StatusCreated)
	if err != nil {
		return "", directory.Unavailable("save user", err)
	}
	if id := resp.id(); id != "" {
		return id, nil
	}

	users, err := c.List(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve id of saved user: %w", err)
	}
	for i := len(users) - 1; i >= 0; i-- {
		if users[i].Name == rec.Name && users[i].Department == rec.Department {
			return users[i].ID, nil
		}
	}
	return "", fmt.Errorf("%w: saved user %q not found in listing", directory.ErrRemoteUnavailable, rec.Name)
}

// Update sends only the supplied fields.
func (c *Client) Update(ctx context.Context, id string, p directory.Partial) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := doRequestRaw(ctx, c, http.MethodPut, "users/"+url.PathEscape(id), p, http.StatusOK, http.StatusNoContent)
	return directory.Unavailable("update user", err)
}

// Delete removes a user.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := doRequestRaw(ctx, c, http.MethodDelete, "users/"+url.PathEscape(id), nil, http.StatusOK, http.StatusNoContent)
	return directory.Unavailable("delete user", err)
}

// Ping calls /test-db. The service answers 200 with a failure text when its database is down.
func (c *Client) Ping(ctx context.Context) error {
	body, err := doRequestRaw(ctx, c, http.MethodGet, "test-db", nil, http.StatusOK)
	if err != nil {
		return directory.Unavailable("ping directory service", err)
	}
	if strings.Contains(strings.ToLower(string(body)), "failed") {
		return fmt.Errorf("%w: %s", directory.ErrRemoteUnavailable, strings.TrimSpace(string(body)))
	}
	return nil
}
