package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vitalog.app/auth"
)

var (
	createUserRole     string
	createUserActive   bool
	createUserTimezone string
)

// createUserCmd provisions an account directly against the directory. This is
// the bootstrap path: the first admin has to exist before anyone can log in
// and activate other accounts through the API.
var createUserCmd = &cobra.Command{
	Use:   "create-user <username> <password>",
	Short: "create a user account in the directory",
	Long: `Create a user account directly in the configured user directory.

Intended for bootstrapping the first administrator:

  vitalog-auth create-user admin s3cret --role admin --active`,
	Args: cobra.ExactArgs(2),
	RunE: runCreateUser,
}

func init() {
	createUserCmd.Flags().StringVar(&createUserRole, "role", string(auth.RolePending), "account role (pending, user, admin)")
	createUserCmd.Flags().BoolVar(&createUserActive, "active", false, "activate the account immediately")
	createUserCmd.Flags().StringVar(&createUserTimezone, "timezone", "UTC", "IANA timezone for the account")
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	username, password := args[0], args[1]

	if err := auth.ValidateUsername(username); err != nil {
		return err
	}
	if password == "" {
		return auth.ErrEmptyPassword
	}

	role := auth.Role(strings.ToLower(createUserRole))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q: must be pending, user, or admin", createUserRole)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	policy := securityPolicy(cfg)

	hash, err := auth.HashPasswordWithIterations(password, policy.PBKDF2Iterations)
	if err != nil {
		return err
	}

	directory, closeDirectory, err := openDirectory(cfg)
	if err != nil {
		return err
	}
	defer closeDirectory()

	active := createUserActive
	if role == auth.RolePending {
		// Pending accounts are never active.
		active = false
	}

	now := time.Now().UTC()
	user := &auth.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		Timezone:     createUserTimezone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := directory.CreateUser(cmd.Context(), user); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id=%s role=%s active=%t)\n",
		user.Username, user.ID, user.Role, user.IsActive)
	return nil
}
