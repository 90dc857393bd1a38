package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/farmcost/internal/auth"
	"github.com/hyperengineering/farmcost/internal/store"
)

var userDeleteForce bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long:  "Add, list and delete accounts in the credential store without running the server.",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user",
	Long:  "Add a user account. The password is read from the first line of standard input.",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user and revoke its sessions",
	Long:  "Permanently delete a user account. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

func init() {
	userDeleteCmd.Flags().BoolVar(&userDeleteForce, "force", false,
		"Skip confirmation prompt")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
}

// withAuth loads configuration and runs fn with the credential service.
func withAuth(ctx context.Context, fn func(svc *auth.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, sessions, err := newAuthService(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer sessions.Close()

	return fn(svc)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]
	ctx := context.Background()

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	password, err := readLine(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr())

	return withAuth(ctx, func(svc *auth.Service) error {
		if err := svc.AddUser(ctx, username, password); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("user %q already exists", username)
			}
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"username": username,
				"created":  true,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added user %q\n", username)
		return nil
	})
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	return withAuth(ctx, func(svc *auth.Service) error {
		users, err := svc.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		if jsonOutput {
			items := make([]map[string]any, len(users))
			for i, u := range users {
				items[i] = map[string]any{
					"username":   u.Username,
					"created_at": u.CreatedAt,
					"admin":      svc.IsAdmin(u.Username),
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"users": items,
				"total": len(items),
			})
		}

		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
			return nil
		}

		w := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintln(w, "USERNAME\tROLE\tCREATED")
		for _, u := range users {
			role := "user"
			if svc.IsAdmin(u.Username) {
				role = "admin"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, role, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	})
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]
	ctx := context.Background()

	// Interactive confirmation unless --force
	if !userDeleteForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "WARNING: This will permanently delete user %q and end its sessions.\n", username)
		fmt.Fprint(errOut, "Type the username to confirm: ")

		input, err := readLine(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if input != username {
			fmt.Fprintln(errOut, "Aborted. Username did not match.")
			return nil
		}
	}

	return withAuth(ctx, func(svc *auth.Service) error {
		if err := svc.DeleteUser(ctx, username); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("user %q not found", username)
			}
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"username": username,
				"deleted":  true,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %q\n", username)
		return nil
	})
}

// readLine reads one line from r without its line ending. A final line
// without a newline is accepted.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
