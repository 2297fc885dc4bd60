package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/directory"
)

// HTTPLauncher starts captures by calling the capture service's trigger endpoints.
// A 2xx answer means the capture started, 409 means the service is already busy.
type HTTPLauncher struct {
	baseURL *url.URL
	paths   map[Kind]string
	method  string
	client  *http.Client
}

// DefaultTriggerPaths are the trigger endpoints exposed by the capture service.
var DefaultTriggerPaths = map[Kind]string{
	KindEnroll: "run_register_face",
	KindVerify: "run_verify_face",
}

// NewHTTPLauncher creates a launcher for the capture service at rawURL.
// Missing paths fall back to DefaultTriggerPaths; an empty method means GET.
func NewHTTPLauncher(rawURL string, paths map[Kind]string, method string, timeout time.Duration) (*HTTPLauncher, error) {
	if rawURL == "" {
		return nil, errors.New("capture service URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid capture service URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid capture service URL scheme %q", parsed.Scheme)
	}

	resolved := make(map[Kind]string, len(Kinds))
	for _, k := range Kinds {
		resolved[k] = DefaultTriggerPaths[k]
		if p, ok := paths[k]; ok && p != "" {
			resolved[k] = p
		}
	}
	if method == "" {
		method = http.MethodGet
	}
	if timeout <= 0 {
		timeout = constants.DefaultTriggerTimeout
	}

	return &HTTPLauncher{
		baseURL: parsed,
		paths:   resolved,
		method:  method,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Start calls the trigger endpoint for req.Kind. The session token and callback URL
// are passed as query parameters so the capture service can echo them back.
func (l *HTTPLauncher) Start(ctx context.Context, req StartRequest) error {
	path, ok := l.paths[req.Kind]
	if !ok {
		return fmt.Errorf("%w: no trigger endpoint for %q", directory.ErrValidation, req.Kind)
	}

	u := l.baseURL.JoinPath(path)
	q := u.Query()
	if req.Token != "" {
		q.Set(constants.SessionParam, req.Token)
	}
	if req.CallbackURL != "" {
		q.Set("callback", req.CallbackURL)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, l.method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	resp, err := l.client.Do(httpReq) //nolint:gosec // URL built from the configured capture service
	if err != nil {
		return directory.Unavailable("trigger capture", fmt.Errorf("could not send request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", directory.ErrConflict, readErrorBody(resp.Body))
	default:
		return fmt.Errorf("trigger failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
}

// readErrorBody reads a bounded response body for error messages.
// Returns a placeholder if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}
