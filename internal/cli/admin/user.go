package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/service"
	"github.com/spf13/cobra"
)

type userView struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Role      domain.UserRole   `json:"role"`
	Status    domain.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

func newUserView(u *domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: u.Role, Status: u.Status, CreatedAt: u.CreatedAt}
}

func (v userView) line() string {
	return fmt.Sprintf("  %s: %s (%s, %s, created: %s)", v.ID, v.Email, v.Role, v.Status, v.CreatedAt.Format(timeLayout))
}

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create, list, and enable or disable users",
	}
	cmd.AddCommand(userCreateCmd(), userListCmd(), userSetStatusCmd())
	return cmd
}

// parseUserFlags turns --admin and --status into a role and a validated status.
func parseUserFlags(isAdmin bool, status string) (domain.UserRole, domain.UserStatus, error) {
	s := domain.UserStatus(status)
	if !domain.IsValidUserStatus(s) {
		return "", "", fmt.Errorf("invalid status %q (expected pending, active or disabled)", status)
	}
	if isAdmin {
		return domain.UserRoleAdmin, s, nil
	}
	return domain.UserRoleUser, s, nil
}

func userCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			isAdmin, _ := cmd.Flags().GetBool("admin")
			status, _ := cmd.Flags().GetString("status")
			role, userStatus, err := parseUserFlags(isAdmin, status)
			if err != nil {
				return err
			}

			return withAuth(cmd, func(ctx context.Context, auth *service.AuthService) error {
				user, err := auth.CreateUser(ctx, args[0], role, userStatus)
				if err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}
				v := newUserView(user)
				if wantsJSON(cmd) {
					return printJSON(v)
				}
				fmt.Println("User created")
				fmt.Println(v.line())
				return nil
			})
		},
	}

	cmd.Flags().Bool("admin", false, "Grant the admin role")
	cmd.Flags().String("status", string(domain.UserStatusActive), "Initial status (pending, active, disabled)")
	addOutputFlag(cmd)
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAuth(cmd, func(ctx context.Context, auth *service.AuthService) error {
				users, err := auth.ListUsers(ctx)
				if err != nil {
					return fmt.Errorf("failed to list users: %w", err)
				}
				views := make([]userView, len(users))
				for i, u := range users {
					views[i] = newUserView(u)
				}
				if wantsJSON(cmd) {
					return printJSON(map[string]interface{}{"items": views})
				}
				if len(views) == 0 {
					fmt.Println("No users found")
					return nil
				}
				fmt.Println("Users:")
				for _, v := range views {
					fmt.Println(v.line())
				}
				return nil
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func userSetStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id|email> <pending|active|disabled>",
		Short: "Change a user's status",
		Long:  "Change a user's status. Keys of users that are not active are rejected.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.UserStatus(args[1])
			return withAuth(cmd, func(ctx context.Context, auth *service.AuthService) error {
				userID, err := resolveUserID(ctx, auth, args[0])
				if err != nil {
					return err
				}
				if err := auth.SetUserStatus(ctx, userID, status); err != nil {
					return fmt.Errorf("failed to update user status: %w", err)
				}
				if wantsJSON(cmd) {
					return printJSON(map[string]interface{}{"id": userID, "status": status})
				}
				fmt.Printf("User %s is now %s\n", userID, status)
				return nil
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}
