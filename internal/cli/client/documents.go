package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage indexed documents",
	}

	cmd.AddCommand(documentsListCmd())
	cmd.AddCommand(documentsDeleteCmd())

	return cmd
}

func documentsListCmd() *cobra.Command {
	var sessionID string
	var limit int
	var cursor string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runDocumentsList(cmd.Context(), client, sessionID, cursor, limit, outputJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Only documents scoped to this session")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func documentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its indexed units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteDocument(ctxOrBackground(cmd.Context()), args[0]); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Printf("Deleted document: %s\n", args[0])
			return nil
		},
	}
}

func runDocumentsList(ctx context.Context, client *APIClient, sessionID, cursor string, limit int, outputJSON bool) error {
	page, err := client.ListDocuments(ctxOrBackground(ctx), sessionID, cursor, limit)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if outputJSON {
		return printJSON(page)
	}

	if len(page.Items) == 0 {
		fmt.Println("No documents")
		return nil
	}
	for _, d := range page.Items {
		fmt.Printf("%s  %-32s  text:%d table:%d image:%d  %s\n",
			d.ID, truncate(d.Filename, 32), d.TextCount, d.TableCount, d.ImageCount, d.UploadedAt)
	}
	if page.HasMore {
		fmt.Printf("\nMore results: --cursor %s\n", page.Cursor)
	}
	return nil
}
