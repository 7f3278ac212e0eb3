package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/repository"
	"github.com/cloo-solutions/mmrag/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

// withAuth opens a small pool for the duration of one admin command.
func withAuth(cmd *cobra.Command, fn func(ctx context.Context, auth *service.AuthService) error) error {
	ctx := cmd.Context()
	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	auth := service.NewAuthService(repository.NewUserRepository(pool), repository.NewAPIKeyRepository(pool), &service.DefaultUUIDGenerator{})
	return fn(ctx, auth)
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

func wantsJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}

// resolveUserID accepts either a user ID or an email address.
func resolveUserID(ctx context.Context, auth *service.AuthService, ref string) (string, error) {
	lookup := auth.GetUserByEmail
	if _, err := uuid.Parse(ref); err == nil {
		lookup = auth.GetUser
	}
	user, err := lookup(ctx, ref)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", fmt.Errorf("user not found: %s", ref)
	}
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func printJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
