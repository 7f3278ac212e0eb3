package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func AskCmd() *cobra.Command {
	var sessionID string
	var saveImages string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question over indexed documents",
		Long: `Ask a question. Without --session a new session is created and its id is
printed so follow-up questions can reuse it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			question := strings.Join(args, " ")

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), client, question, sessionID, saveImages, outputJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session to continue")
	cmd.Flags().StringVar(&saveImages, "save-images", "", "Directory to write the images used as context")

	return cmd
}

func runAsk(ctx context.Context, client *APIClient, question, sessionID, saveImages string, outputJSON bool) error {
	ctx = ctxOrBackground(ctx)
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question is required")
	}

	result, err := client.Query(ctx, QueryRequest{Question: question, SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var saved []string
	if saveImages != "" && len(result.Images) > 0 {
		saved, err = writeImages(saveImages, result.Images)
		if err != nil {
			return err
		}
	}

	if outputJSON {
		return printJSON(result)
	}

	fmt.Println(result.Answer)
	fmt.Println()
	fmt.Printf("session: %s  images used: %d\n", result.Meta.SessionID, result.Meta.ImagesCount)
	for _, p := range saved {
		fmt.Printf("  saved %s\n", p)
	}
	return nil
}

func writeImages(dir string, images []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	paths := make([]string, 0, len(images))
	for i, img := range images {
		data, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return paths, fmt.Errorf("image %d is not valid base64: %w", i, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("image_%02d%s", i+1, imageExt(data)))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write image: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func imageExt(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[1:4]) == "PNG":
		return ".png"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return ".jpg"
	case len(data) >= 6 && string(data[:3]) == "GIF":
		return ".gif"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return ".webp"
	}
	return ".bin"
}
