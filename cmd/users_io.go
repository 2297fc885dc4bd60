package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kozaktomas/face-registry/internal/directory"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var usersImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import users from a YAML file",
	Long: `Import users from a YAML file. Each entry needs a name, a department and a
face, which is either a legacy descriptor string or a geometry mapping:

  users:
    - name: Alice
      department: R&D
      face:
        face_width: 120
        face_height: 140
        eyes: [{x: 30, y: 50}, {x: 90, y: 50}]
    - name: Bob
      department: Ops
      face: gASVblob...`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersImport,
}

var usersExportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Export users to a YAML file (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUsersExport,
}

func init() {
	usersCmd.AddCommand(usersImportCmd)
	usersCmd.AddCommand(usersExportCmd)

	usersImportCmd.Flags().Bool("dry-run", false, "Validate the file without writing to the store")
	usersImportCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

// usersFile is the YAML import and export format.
type usersFile struct {
	Users []userEntry `yaml:"users"`
}

type userEntry struct {
	ID         string `yaml:"id,omitempty"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Face       any    `yaml:"face"`
}

// readUsersFile parses and validates every entry. IDs in the file are ignored on import.
func readUsersFile(r io.Reader) ([]directory.UserRecord, error) {
	var f usersFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	records := make([]directory.UserRecord, 0, len(f.Users))
	for i, e := range f.Users {
		// The face goes through the JSON descriptor codec so both formats share one set of rules.
		raw, err := json.Marshal(e.Face)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Name, err)
		}
		var face directory.Descriptor
		if err := json.Unmarshal(raw, &face); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Name, err)
		}
		rec := directory.UserRecord{Name: e.Name, Department: e.Department, Face: face}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Name, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeUsersFile encodes records in the import format.
func writeUsersFile(w io.Writer, records []directory.UserRecord) error {
	f := usersFile{Users: make([]userEntry, 0, len(records))}
	for _, rec := range records {
		raw, err := json.Marshal(rec.Face)
		if err != nil {
			return fmt.Errorf("user %s: %w", rec.ID, err)
		}
		var face any
		if err := json.Unmarshal(raw, &face); err != nil {
			return fmt.Errorf("user %s: %w", rec.ID, err)
		}
		f.Users = append(f.Users, userEntry{ID: rec.ID, Name: rec.Name, Department: rec.Department, Face: face})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}

func runUsersImport(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	noProgress := mustGetBool(cmd, "no-progress")

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer file.Close()

	records, err := readUsersFile(file)
	if err != nil {
		return err
	}
	fmt.Printf("Read %d users from %s\n", len(records), args[0])
	if dryRun {
		fmt.Println("Dry run, nothing written.")
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	repo, closeStore, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var progress func()
	if !noProgress {
		bar := progressbar.NewOptions(len(records),
			progressbar.OptionSetDescription("Importing users"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("users"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		progress = func() { _ = bar.Add(1) }
		defer bar.Finish()
	}

	res, err := repo.Import(cmd.Context(), records, progress)
	fmt.Printf("\nImported %d users, %d failed\n", len(res.IDs), res.Failed)
	if err != nil {
		return fmt.Errorf("import finished with errors: %w", err)
	}
	return nil
}

func runUsersExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	repo, closeStore, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	out := io.Writer(os.Stdout)
	if len(args) == 1 {
		file, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[0], err)
		}
		defer file.Close()
		out = file
	}

	records := repo.Snapshot()
	if err := writeUsersFile(out, records); err != nil {
		return fmt.Errorf("failed to export users: %w", err)
	}
	if len(args) == 1 {
		fmt.Printf("Exported %d users to %s\n", len(records), args[0])
	}
	return nil
}
