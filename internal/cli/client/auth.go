package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd groups the credential commands.
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication credentials",
		Long:  "Login, logout, and check authentication status for the mmrag CLI",
	}
	cmd.AddCommand(authLoginCmd(), authLogoutCmd(), authStatusCmd())
	return cmd
}

func authLoginCmd() *cobra.Command {
	var key, url string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key in ~/.mmrag/config.json",
		Long:  "Store an API key in ~/.mmrag/config.json. Without --key the key is read from stdin.",
		RunE: func(*cobra.Command, []string) error {
			return runAuthLogin(key, url)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key ("+apiKeyPrefix+"...)")
	cmd.Flags().StringVar(&url, "url", defaultAPIURL, "API URL")
	return cmd
}

func authLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(*cobra.Command, []string) error {
			return runAuthLogout()
		},
	}
}

func authStatusCmd() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where credentials come from",
		Long:  "Show which credential source is in effect. With --verify, also ask the server who the key belongs to.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("output")
			flagKey, _ := cmd.Flags().GetString("api-key")
			flagURL, _ := cmd.Flags().GetString("api-url")
			if err := runAuthStatus(flagKey, flagURL, asJSON); err != nil || !verify {
				return err
			}
			return runAuthVerify(cmd.Context(), cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the key against the server")
	return cmd
}

func runAuthLogin(key, url string) error {
	if key == "" {
		var err error
		if key, err = promptLine(os.Stdin, "Enter API key: "); err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
	}
	if !IsValidAPIKey(key) {
		return fmt.Errorf("invalid API key format (expected: %s + 64 hex characters)", apiKeyPrefix)
	}
	if err := SaveGlobalConfig(&GlobalConfig{APIKey: key, APIURL: url}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	fmt.Println("Logged in; credentials saved to", configPathForDisplay())
	return nil
}

func promptLine(r io.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func configPathForDisplay() string {
	path, err := getConfigPathFunc()
	if err != nil {
		return "~/.mmrag/config.json"
	}
	return path
}

func runAuthLogout() error {
	if err := DeleteGlobalConfig(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	fmt.Println("Logged out")
	return nil
}

// authStatus is the `auth status` report. The key is always masked.
type authStatus struct {
	Authenticated bool             `json:"authenticated"`
	Source        CredentialSource `json:"source"`
	APIKey        string           `json:"api_key,omitempty"`
	APIURL        string           `json:"api_url,omitempty"`
}

func (s authStatus) String() string {
	if !s.Authenticated {
		return "Not authenticated\nRun 'mmrag auth login' to authenticate"
	}
	return fmt.Sprintf("Authenticated: yes\nSource: %s\nAPI Key: %s\nAPI URL: %s", s.Source, s.APIKey, s.APIURL)
}

func runAuthStatus(flagKey, flagURL string, asJSON bool) error {
	source, key, url := GetCredentialSource(flagKey, flagURL)
	status := authStatus{Authenticated: source != SourceNone, Source: source}
	if status.Authenticated {
		status.APIKey = maskAPIKey(key)
		status.APIURL = url
	}

	if asJSON {
		return printJSON(status)
	}
	fmt.Println(status)
	return nil
}

func runAuthVerify(ctx context.Context, cmd *cobra.Command, asJSON bool) error {
	client, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}
	me, err := client.Me(ctxOrBackground(ctx))
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if asJSON {
		return printJSON(me)
	}
	fmt.Printf("User: %s (%s, %s)\n", me.Email, me.Role, me.Status)
	return nil
}

// maskAPIKey keeps the prefix plus three characters and the last four.
func maskAPIKey(key string) string {
	if len(key) < 12 {
		return "***"
	}
	return key[:len(apiKeyPrefix)+3] + "..." + key[len(key)-4:]
}
