package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// IndexCmd uploads pre-classified units. Units come from a JSON file, from
// --text/--table/--image files, or both.
func IndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [units.json]",
		Short: "Index a document's units",
		Long: `Upload the units of one document for indexing.

The JSON file is either an array of units or an object:
  {"filename": "report.pdf", "session_id": "...", "units": [{"kind": "text", "content": "..."}]}

Unit kinds are text, table and image. Image content is base64.
Files passed with --image are read and encoded automatically.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.unitsFile = args[0]
			}
			outputJSON, _ := cmd.Flags().GetBool("output")

			req, err := buildUploadRequest(opts)
			if err != nil {
				return err
			}

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), client, req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Scope the document to a chat session")
	cmd.Flags().StringVar(&opts.filename, "filename", "", "Document filename (defaults to the units file name)")
	cmd.Flags().StringArrayVar(&opts.textFiles, "text", nil, "Text unit file (repeatable)")
	cmd.Flags().StringArrayVar(&opts.tableFiles, "table", nil, "Table unit file (repeatable)")
	cmd.Flags().StringArrayVar(&opts.imageFiles, "image", nil, "Image unit file (repeatable)")

	return cmd
}

type indexOptions struct {
	unitsFile  string
	sessionID  string
	filename   string
	textFiles  []string
	tableFiles []string
	imageFiles []string
}

func buildUploadRequest(opts indexOptions) (UploadRequest, error) {
	var req UploadRequest

	if opts.unitsFile != "" {
		data, err := os.ReadFile(opts.unitsFile)
		if err != nil {
			return req, fmt.Errorf("failed to read units file: %w", err)
		}
		parsed, err := parseUnitsFile(data)
		if err != nil {
			return req, fmt.Errorf("%s: %w", opts.unitsFile, err)
		}
		req = parsed
		if req.Filename == "" {
			req.Filename = filepath.Base(opts.unitsFile)
		}
	}

	for _, group := range []struct {
		kind  string
		files []string
	}{
		{"text", opts.textFiles},
		{"table", opts.tableFiles},
		{"image", opts.imageFiles},
	} {
		for _, path := range group.files {
			unit, err := unitFromFile(group.kind, path)
			if err != nil {
				return req, err
			}
			req.Units = append(req.Units, unit)
			if req.Filename == "" {
				req.Filename = filepath.Base(path)
			}
		}
	}

	if opts.filename != "" {
		req.Filename = opts.filename
	}
	if opts.sessionID != "" {
		req.SessionID = opts.sessionID
	}
	if len(req.Units) == 0 {
		return req, fmt.Errorf("no units to index (pass a units file or --text/--table/--image)")
	}
	return req, nil
}

func parseUnitsFile(data []byte) (UploadRequest, error) {
	var req UploadRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return req, fmt.Errorf("empty units file")
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Units); err != nil {
			return req, fmt.Errorf("invalid units array: %w", err)
		}
		return req, nil
	}

	if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, fmt.Errorf("invalid units document: %w", err)
	}
	return req, nil
}

func unitFromFile(kind, path string) (Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Unit{}, fmt.Errorf("failed to read %s unit: %w", kind, err)
	}
	if kind == "image" {
		return Unit{Kind: kind, Content: base64.StdEncoding.EncodeToString(data)}, nil
	}
	return Unit{Kind: kind, Content: string(data)}, nil
}

func runIndex(ctx context.Context, client *APIClient, req UploadRequest, outputJSON bool) error {
	ctx = ctxOrBackground(ctx)

	var onProgress ProgressFunc
	if !outputJSON {
		onProgress = func(current, total int64) {
			fmt.Fprintf(os.Stderr, "\rUploading %s: %d/%d bytes", req.Filename, current, total)
		}
	}

	result, err := client.UploadDocument(ctx, req, onProgress)
	if !outputJSON {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	if outputJSON {
		return printJSON(result)
	}

	c := result.Report.Counts
	fmt.Printf("Indexed %s (%s)\n", result.Document.Filename, result.Document.ID)
	fmt.Printf("  texts: %d  tables: %d  images: %d\n", c.Texts, c.Tables, c.Images)
	if n := len(result.Report.Failures); n > 0 {
		fmt.Printf("  %d unit(s) failed:\n", n)
		for _, f := range result.Report.Failures {
			fmt.Printf("    #%d %s [%s]: %s\n", f.Index, f.Kind, f.Stage, strings.TrimSpace(f.Reason))
		}
	}
	return nil
}
