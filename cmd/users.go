package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kozaktomas/face-registry/internal/directory"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List and manage directory users",
	Long:  `List users from the configured store. Use subcommands to create, update, delete, import or export users.`,
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Create a user with a face descriptor.

The face is either an eye geometry passed with --coordinates or a legacy
descriptor blob passed with --legacy.

Example:
  face-registry users create --name "Alice" --department "R&D" \
    --coordinates '{"face_width":120,"face_height":140,"eyes":[{"x":30,"y":50},{"x":90,"y":50}]}'`,
	RunE: runUsersCreate,
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a user's name or department",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersUpdate,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete users by ID",
	Long: `Delete one or more users by their ID.

Example:
  face-registry users delete 65f1c0de9b1e
  face-registry users delete 65f1c0de9b1e 65f1c0de9b1f --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUsersDelete,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersUpdateCmd)
	usersCmd.AddCommand(usersDeleteCmd)

	usersCmd.PersistentFlags().String("backend", "", "Store backend to use (overrides STORE_BACKEND)")

	// List flags
	usersCmd.Flags().String("search", "", "Only show users whose name or department matches")
	usersCmd.Flags().String("sort", "name", "Sort by: name, department, -name, -department (prefix with - for descending)")
	usersCmd.Flags().Bool("json", false, "Output as JSON")

	// Create flags
	usersCreateCmd.Flags().String("name", "", "User name")
	usersCreateCmd.Flags().String("department", "", "User department")
	usersCreateCmd.Flags().String("coordinates", "", "Face geometry as JSON")
	usersCreateCmd.Flags().String("legacy", "", "Legacy face descriptor blob")

	// Update flags
	usersUpdateCmd.Flags().String("name", "", "New name")
	usersUpdateCmd.Flags().String("department", "", "New department")

	// Delete flags
	usersDeleteCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	query := mustGetString(cmd, "search")
	sortBy := mustGetString(cmd, "sort")
	jsonOutput := mustGetBool(cmd, "json")

	repo, closeStore, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	users := repo.Search(query)
	sortUsers(users, sortBy)

	if jsonOutput {
		return printJSON(users)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tFACE")
	fmt.Fprintln(w, "--\t----\t----------\t----")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Department, u.Face.Kind())
	}
	w.Flush()

	fmt.Printf("\nTotal: %d users\n", len(users))
	return nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	face, err := faceFromFlags(mustGetString(cmd, "coordinates"), mustGetString(cmd, "legacy"))
	if err != nil {
		return err
	}

	repo, closeStore, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := repo.Create(cmd.Context(), mustGetString(cmd, "name"), mustGetString(cmd, "department"), face)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Printf("Created user %s\n", id)
	return nil
}

// faceFromFlags builds a descriptor from exactly one of the geometry or legacy flags.
func faceFromFlags(coordinates, legacy string) (directory.Descriptor, error) {
	switch {
	case coordinates != "" && legacy != "":
		return directory.Descriptor{}, fmt.Errorf("use either --coordinates or --legacy, not both")
	case coordinates != "":
		g, err := directory.ParseGeometry([]byte(coordinates))
		if err != nil {
			return directory.Descriptor{}, err
		}
		return directory.GeometryDescriptor(g), nil
	case legacy != "":
		return directory.LegacyDescriptor(legacy), nil
	}
	return directory.Descriptor{}, fmt.Errorf("a face is required: pass --coordinates or --legacy")
}

func runUsersUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var p directory.Partial
	if cmd.Flags().Changed("name") {
		name := mustGetString(cmd, "name")
		p.Name = &name
	}
	if cmd.Flags().Changed("department") {
		dept := mustGetString(cmd, "department")
		p.Department = &dept
	}

	repo, closeStore, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := repo.Update(cmd.Context(), args[0], p); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	fmt.Printf("Updated user %s\n", args[0])
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	skipConfirm := mustGetBool(cmd, "yes")

	repo, closeStore, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Validate IDs and show what will be deleted
	var validIDs []string
	fmt.Println("Users to delete:")
	for _, id := range args {
		u, err := repo.Get(cmd.Context(), id)
		if err != nil {
			fmt.Printf("  - WARNING: %v (skipping %s)\n", err, id)
			continue
		}
		fmt.Printf("  - %s, %s (%s)\n", u.Name, u.Department, id)
		validIDs = append(validIDs, id)
	}

	if len(validIDs) == 0 {
		return fmt.Errorf("no valid users to delete")
	}

	if !skipConfirm {
		fmt.Printf("\nDelete %d user(s)? [y/N]: ", len(validIDs))
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	deleted := 0
	for _, id := range validIDs {
		if err := repo.Delete(cmd.Context(), id); err != nil {
			fmt.Printf("Failed to delete %s: %v\n", id, err)
			continue
		}
		deleted++
	}

	fmt.Printf("Deleted %d user(s).\n", deleted)
	return nil
}

func sortUsers(users []directory.UserRecord, sortBy string) {
	descending := strings.HasPrefix(sortBy, "-")
	field := strings.TrimPrefix(sortBy, "-")

	sort.SliceStable(users, func(i, j int) bool {
		var a, b string
		switch field {
		case "department":
			a, b = users[i].Department, users[j].Department
		case "name":
			fallthrough
		default:
			a, b = users[i].Name, users[j].Name
		}
		a, b = directory.NormalizeText(a), directory.NormalizeText(b)
		if descending {
			return a > b
		}
		return a < b
	})
}
