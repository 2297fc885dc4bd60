package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-registry/internal/capture"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Trigger and inspect capture sessions on a running server",
}

var captureTriggerCmd = &cobra.Command{
	Use:       "trigger <enroll|verify>",
	Short:     "Start a capture session",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(capture.KindEnroll), string(capture.KindVerify)},
	RunE:      runCaptureTrigger,
}

var captureStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the capture session of each kind",
	RunE:  runCaptureStatus,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.AddCommand(captureTriggerCmd)
	captureCmd.AddCommand(captureStatusCmd)

	captureCmd.PersistentFlags().String("server", "", "Base URL of the running server (defaults to WEB_PUBLIC_URL)")
	captureCmd.PersistentFlags().Duration("timeout", 15*time.Second, "Request timeout")
}

// captureClient calls the capture API of a running server.
type captureClient struct {
	baseURL string
	http    *http.Client
}

func newCaptureClient(cmd *cobra.Command) *captureClient {
	server := mustGetString(cmd, "server")
	if server == "" {
		server = config.Load().Web.PublicURL
	}
	return &captureClient{
		baseURL: strings.TrimSuffix(server, "/"),
		http:    &http.Client{Timeout: mustGetDuration(cmd, "timeout")},
	}
}

// do sends a request and decodes the JSON body into out. Non-2xx responses carrying
// a session handle are still decoded; other failures return the server's error message.
func (c *captureClient) do(method, path string, out any) (int, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.StatusCode, nil
}

func runCaptureTrigger(cmd *cobra.Command, args []string) error {
	kind, err := capture.ParseKind(args[0])
	if err != nil {
		return err
	}
	client := newCaptureClient(cmd)

	var handle capture.SessionHandle
	status, err := client.do(http.MethodPost, "/api/v1/capture/"+string(kind), &handle)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", kind, handle.Result)
	if handle.Message != "" {
		fmt.Println(handle.Message)
	}
	if !handle.ReleaseAt.IsZero() {
		fmt.Printf("Guard released at %s\n", handle.ReleaseAt.Local().Format(time.TimeOnly))
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("capture not started (status %d)", status)
	}
	return nil
}

func runCaptureStatus(cmd *cobra.Command, args []string) error {
	client := newCaptureClient(cmd)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSTATUS\tSTARTED\tRELEASE")
	fmt.Fprintln(w, "----\t------\t-------\t-------")
	for _, kind := range capture.Kinds {
		var handle capture.SessionHandle
		if _, err := client.do(http.MethodGet, "/api/v1/capture/"+string(kind), &handle); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, handle.Status, formatTime(handle.StartedAt), formatTime(handle.ReleaseAt))
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.TimeOnly)
}
