package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/service"
	"github.com/spf13/cobra"
)

// apiKeyView is the admin listing shape; the hash never leaves the database.
type apiKeyView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	Revoked   bool       `json:"revoked"`
}

func newAPIKeyView(k *domain.APIKey) apiKeyView {
	return apiKeyView{
		ID:        k.ID,
		Name:      k.Name,
		UserID:    k.UserID,
		CreatedAt: k.CreatedAt,
		RevokedAt: k.RevokedAt,
		Revoked:   k.IsRevoked(),
	}
}

func (v apiKeyView) line() string {
	state := "active"
	if v.Revoked {
		state = "revoked"
	}
	return fmt.Sprintf("  %s: %s (%s, created: %s)", v.ID, v.Name, state, v.CreatedAt.Format(timeLayout))
}

func APIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "Create, list, and revoke API keys",
	}
	cmd.AddCommand(apiKeyCreateCmd(), apiKeyListCmd(), apiKeyRevokeCmd())
	return cmd
}

func apiKeyCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Create a new API key for a user. The token is printed once.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userRef, _ := cmd.Flags().GetString("user")
			name, _ := cmd.Flags().GetString("name")

			return withAuth(cmd, func(ctx context.Context, auth *service.AuthService) error {
				userID, err := resolveUserID(ctx, auth, userRef)
				if err != nil {
					return err
				}
				token, err := auth.CreateAPIKey(ctx, userID, name)
				if err != nil {
					return fmt.Errorf("failed to create API key: %w", err)
				}

				if wantsJSON(cmd) {
					return printJSON(map[string]string{"name": name, "user_id": userID, "token": token})
				}
				fmt.Printf("API key %q created for user %s\n", name, userID)
				fmt.Printf("Token: %s\n", token)
				fmt.Println("\nSave this token now. It cannot be shown again.")
				return nil
			})
		},
	}

	cmd.Flags().StringP("user", "u", "", "User ID or email (required)")
	cmd.Flags().StringP("name", "n", "", "API key name (required)")
	addOutputFlag(cmd)
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userRef, _ := cmd.Flags().GetString("user")

			return withAuth(cmd, func(ctx context.Context, auth *service.AuthService) error {
				userID, err := resolveUserID(ctx, auth, userRef)
				if err != nil {
					return err
				}
				keys, err := auth.ListAPIKeys(ctx, userID)
				if err != nil {
					return fmt.Errorf("failed to list API keys: %w", err)
				}

				views := make([]apiKeyView, len(keys))
				for i, k := range keys {
					views[i] = newAPIKeyView(k)
				}
				if wantsJSON(cmd) {
					return printJSON(map[string]interface{}{"items": views})
				}
				if len(views) == 0 {
					fmt.Printf("No API keys found for user %s\n", userID)
					return nil
				}
				fmt.Printf("API keys for user %s:\n", userID)
				for _, v := range views {
					fmt.Println(v.line())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("user", "u", "", "User ID or email (required)")
	addOutputFlag(cmd)
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apiKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key by its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID := args[0]
			return withAuth(cmd, func(ctx context.Context, auth *service.AuthService) error {
				if err := auth.RevokeAPIKey(ctx, keyID); err != nil {
					return fmt.Errorf("failed to revoke API key: %w", err)
				}
				if wantsJSON(cmd) {
					return printJSON(map[string]interface{}{"id": keyID, "revoked": true})
				}
				fmt.Printf("API key %s revoked\n", keyID)
				return nil
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}
