package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/correlator"
	"github.com/spf13/cobra"
)

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Decode capture result payloads",
	Long: `Decode the payloads a capture process sends back to /signup and /login.
With --redirect the decoded payload is re-encoded into the callback URL the
capture process should open, which is handy for testing a deployment.`,
}

var payloadEnrollCmd = &cobra.Command{
	Use:   "enroll [json]",
	Short: "Decode an enrollment coordinates payload (reads stdin without an argument)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPayloadEnroll,
}

var payloadVerifyCmd = &cobra.Command{
	Use:   "verify [json]",
	Short: "Decode a verification result payload (reads stdin without an argument)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPayloadVerify,
}

func init() {
	rootCmd.AddCommand(payloadCmd)
	payloadCmd.AddCommand(payloadEnrollCmd)
	payloadCmd.AddCommand(payloadVerifyCmd)

	payloadCmd.PersistentFlags().Bool("redirect", false, "Print the callback URL for the payload")
	payloadCmd.PersistentFlags().String("session", "", "Session token to include in the callback URL")
}

func readPayload(args []string, stdin io.Reader) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runPayloadEnroll(cmd *cobra.Command, args []string) error {
	raw, err := readPayload(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	g, err := correlator.DecodeEnrollmentPayload(raw)
	if err != nil {
		return fmt.Errorf("invalid enrollment payload: %w", err)
	}

	if mustGetBool(cmd, "redirect") {
		u, err := correlator.EnrollmentRedirect(config.Load().Web.EnrollCallbackURL(), g, mustGetString(cmd, "session"))
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil
	}

	fmt.Printf("Face: %dx%d\n", g.FaceWidth, g.FaceHeight)
	fmt.Printf("Left eye: (%d, %d)\n", g.LeftEye().X, g.LeftEye().Y)
	fmt.Printf("Right eye: (%d, %d)\n", g.RightEye().X, g.RightEye().Y)
	return nil
}

func runPayloadVerify(cmd *cobra.Command, args []string) error {
	raw, err := readPayload(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	// Unusable payloads still decode, to an error outcome.
	outcome := correlator.DecodeVerificationPayload(raw)

	if mustGetBool(cmd, "redirect") {
		u, err := correlator.VerificationRedirect(config.Load().Web.VerifyCallbackURL(), outcome, mustGetString(cmd, "session"))
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil
	}
	return printJSON(outcome)
}
