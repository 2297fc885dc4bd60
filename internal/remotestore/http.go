package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/kozaktomas/face-registry/internal/directory"
)

// statusError is a non-2xx answer from the directory service.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.code, e.body)
}

// doGetJSON performs a GET request and unmarshals the JSON response into the result type.
// The endpoint is the path after the base URL (e.g., "users/123").
func doGetJSON[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	return doRequestJSON[T](ctx, c, http.MethodGet, endpoint, nil, http.StatusOK)
}

// doRequestJSON performs a request with an optional JSON body and unmarshals a JSON response.
// It accepts one or more valid status codes; an empty body decodes to the zero value.
func doRequestJSON[T any](ctx context.Context, c *Client, method, endpoint string, requestBody any, expectedStatuses ...int) (*T, error) {
	body, err := c.do(ctx, method, endpoint, requestBody, expectedStatuses)
	if err != nil {
		return nil, err
	}

	var result T
	if len(bytes.TrimSpace(body)) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: could not unmarshal %s response: %w", directory.ErrParse, endpoint, err)
	}
	return &result, nil
}

// doRequestRaw performs a request and returns the raw response body.
func doRequestRaw(ctx context.Context, c *Client, method, endpoint string, requestBody any, expectedStatuses ...int) ([]byte, error) {
	return c.do(ctx, method, endpoint, requestBody, expectedStatuses)
}

func (c *Client) do(ctx context.Context, method, endpoint string, requestBody any, expected []int) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(endpoint), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req) //nolint:gosec // URL constructed from the configured base URL via resolveURL
	if err != nil {
		return nil, fmt.Errorf("%w: could not send request: %w", directory.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if !isExpectedStatus(resp.StatusCode, expected) {
		return nil, classify(&statusError{code: resp.StatusCode, body: readErrorBody(resp.Body)})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response body: %w", directory.ErrRemoteUnavailable, err)
	}
	return body, nil
}

// classify maps a status error onto the directory error taxonomy.
func classify(err *statusError) error {
	switch {
	case err.code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", directory.ErrNotFound, err)
	case err.code == http.StatusBadRequest || err.code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", directory.ErrValidation, err)
	default:
		return fmt.Errorf("%w: %w", directory.ErrRemoteUnavailable, err)
	}
}

// isExpectedStatus checks if a status code is in the list of expected statuses.
func isExpectedStatus(code int, expected []int) bool {
	return slices.Contains(expected, code)
}

// readErrorBody reads a bounded response body for error messages.
// Returns a placeholder if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "(could not read error body)"
	}
	return string(bytes.TrimSpace(body))
}
