package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func SessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage chat sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsCreateCmd())
	cmd.AddCommand(sessionsDeleteCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	var limit int
	var cursor string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSessionsList(cmd.Context(), client, cursor, limit, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session with its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSessionsShow(cmd.Context(), client, args[0], outputJSON)
		},
	}
}

func sessionsCreateCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty session",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSessionsCreate(cmd.Context(), client, title, outputJSON)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Session title")

	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteSession(ctxOrBackground(cmd.Context()), args[0]); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Printf("Deleted session: %s\n", args[0])
			return nil
		},
	}
}

func runSessionsList(ctx context.Context, client *APIClient, cursor string, limit int, outputJSON bool) error {
	page, err := client.ListSessions(ctxOrBackground(ctx), cursor, limit)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if outputJSON {
		return printJSON(page)
	}

	if len(page.Items) == 0 {
		fmt.Println("No sessions")
		return nil
	}
	for _, s := range page.Items {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %-40s  %3d msgs  %s\n", s.ID, truncate(title, 40), s.MessageCount, s.UpdatedAt)
	}
	if page.HasMore {
		fmt.Printf("\nMore results: --cursor %s\n", page.Cursor)
	}
	return nil
}

func runSessionsShow(ctx context.Context, client *APIClient, id string, outputJSON bool) error {
	s, err := client.GetSession(ctxOrBackground(ctx), id)
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	if outputJSON {
		return printJSON(s)
	}

	fmt.Printf("Session: %s\n", s.ID)
	if s.Title != "" {
		fmt.Printf("Title: %s\n", s.Title)
	}
	fmt.Printf("Created: %s\n", s.CreatedAt)
	for _, m := range s.Messages {
		fmt.Printf("\n[%s] %s\n", m.Role, m.CreatedAt)
		fmt.Println(m.Content)
		if len(m.Images) > 0 {
			fmt.Printf("(%d image(s))\n", len(m.Images))
		}
	}
	return nil
}

func runSessionsCreate(ctx context.Context, client *APIClient, title string, outputJSON bool) error {
	s, err := client.CreateSession(ctxOrBackground(ctx), title)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	if outputJSON {
		return printJSON(s)
	}
	fmt.Printf("Created session: %s\n", s.ID)
	return nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
