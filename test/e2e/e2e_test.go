//go:build e2e

package e2e

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/mmrag/internal/cli/client"
	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func reportUnits() []client.Unit {
	return []client.Unit{
		{Kind: "text", Content: "Project Alpha launched in 2023 and reached 40 customers."},
		{Kind: "text", Content: "Project Beta is a data platform planned for 2025."},
		{Kind: "table", Content: "| project | budget |\n| Alpha | 1.2M |\n| Beta | 3.4M |"},
	}
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr.StatusCode
}

func TestE2E_Auth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	t.Run("me returns the caller", func(t *testing.T) {
		me, err := env.Client.Me(env.Ctx)
		require.NoError(t, err)
		assert.Equal(t, env.UserID, me.ID)
		require.Len(t, me.APIKeys, 1)
		assert.Equal(t, "e2e", me.APIKeys[0].Name)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		resp, err := http.Get(env.ServerURL + "/v1/me")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		bad, err := client.NewAPIClientWithConfig("mmrag_"+strings.Repeat("0", 64), env.ServerURL)
		require.NoError(t, err)

		_, err = bad.Me(env.Ctx)
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
	})

	t.Run("disabled user is forbidden", func(t *testing.T) {
		userID, token := env.NewUser("disabled@example.com")
		require.NoError(t, env.Auth.SetUserStatus(env.Ctx, userID, domain.UserStatusDisabled))

		c, err := client.NewAPIClientWithConfig(token, env.ServerURL)
		require.NoError(t, err)

		_, err = c.Me(env.Ctx)
		assert.Equal(t, http.StatusForbidden, apiStatus(t, err))
	})
}

func TestE2E_IndexAndAsk(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	uploaded, err := env.Client.UploadDocument(env.Ctx, client.UploadRequest{
		Filename: "portfolio.pdf",
		Units:    reportUnits(),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, uploaded.Report.Counts.Texts)
	assert.Equal(t, 1, uploaded.Report.Counts.Tables)
	assert.Empty(t, uploaded.Report.Failures)
	assert.Len(t, uploaded.Document.UnitIDs, 3)

	t.Run("document is listed", func(t *testing.T) {
		page, err := env.Client.ListDocuments(env.Ctx, "", "", 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "portfolio.pdf", page.Items[0].Filename)

		doc, err := env.Client.GetDocument(env.Ctx, uploaded.Document.ID)
		require.NoError(t, err)
		assert.Equal(t, uploaded.Document.UnitIDs, doc.UnitIDs)
	})

	var sessionID string

	t.Run("first question creates a session", func(t *testing.T) {
		result, err := env.Client.Query(env.Ctx, client.QueryRequest{Question: "When did Project Alpha launch?"})
		require.NoError(t, err)

		assert.NotEmpty(t, result.Answer)
		assert.NotEmpty(t, result.Meta.SessionID)
		assert.Equal(t, "When did Project Alpha launch?", result.Meta.Question)
		assert.NotNil(t, result.Images)
		sessionID = result.Meta.SessionID
	})

	t.Run("follow-up appends to the session", func(t *testing.T) {
		require.NotEmpty(t, sessionID)

		result, err := env.Client.Query(env.Ctx, client.QueryRequest{Question: "List all projects", SessionID: sessionID})
		require.NoError(t, err)
		assert.Equal(t, sessionID, result.Meta.SessionID)

		s, err := env.Client.GetSession(env.Ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, s.Messages, 4)
		assert.Equal(t, "user", s.Messages[0].Role)
		assert.Equal(t, "assistant", s.Messages[1].Role)
		assert.Equal(t, "List all projects", s.Messages[2].Content)
	})

	t.Run("empty question is rejected", func(t *testing.T) {
		_, err := env.Client.Query(env.Ctx, client.QueryRequest{Question: "   "})
		assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))
	})

	t.Run("delete removes the document", func(t *testing.T) {
		require.NoError(t, env.Client.DeleteDocument(env.Ctx, uploaded.Document.ID))

		_, err := env.Client.GetDocument(env.Ctx, uploaded.Document.ID)
		assert.Equal(t, http.StatusNotFound, apiStatus(t, err))

		require.NoError(t, env.Repairs.ProcessJobs(env.Ctx))
	})
}

func TestE2E_SessionScoping(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	session, err := env.Client.CreateSession(env.Ctx, "design review")
	require.NoError(t, err)

	_, err = env.Client.UploadDocument(env.Ctx, client.UploadRequest{
		Filename:  "diagram.png",
		SessionID: session.ID,
		Units:     []client.Unit{{Kind: "image", Content: pixelPNG}},
	}, nil)
	require.NoError(t, err)

	t.Run("session sees its own images", func(t *testing.T) {
		result, err := env.Client.Query(env.Ctx, client.QueryRequest{Question: "Show me the diagram", SessionID: session.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Meta.ImagesCount)
		require.Len(t, result.Images, 1)
		assert.Equal(t, pixelPNG, result.Images[0])
	})

	t.Run("questions without a session search all of the user's content", func(t *testing.T) {
		result, err := env.Client.Query(env.Ctx, client.QueryRequest{Question: "Show me the diagram"})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Meta.ImagesCount)
		assert.NotEqual(t, session.ID, result.Meta.SessionID)
	})

	t.Run("other sessions do not", func(t *testing.T) {
		fresh, err := env.Client.CreateSession(env.Ctx, "unrelated")
		require.NoError(t, err)
		result, err := env.Client.Query(env.Ctx, client.QueryRequest{Question: "Show me the diagram", SessionID: fresh.ID})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Meta.ImagesCount)
	})

	t.Run("other users do not", func(t *testing.T) {
		_, token := env.NewUser("other@example.com")
		other, err := client.NewAPIClientWithConfig(token, env.ServerURL)
		require.NoError(t, err)

		_, err = other.GetSession(env.Ctx, session.ID)
		assert.Equal(t, http.StatusNotFound, apiStatus(t, err))

		page, err := other.ListDocuments(env.Ctx, "", "", 10)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("session documents are listed", func(t *testing.T) {
		page, err := env.Client.ListDocuments(env.Ctx, session.ID, "", 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, 1, page.Items[0].ImageCount)
	})
}

func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()
	env.BuildBinaries()

	workDir := t.TempDir()
	unitsPath := filepath.Join(workDir, "units.json")
	data, err := json.Marshal(map[string]any{"filename": "portfolio.pdf", "units": reportUnits()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(unitsPath, data, 0600))

	t.Run("index", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "index", unitsPath, "--output")
		require.NoError(t, err, out)

		var result client.UploadResult
		require.NoError(t, json.Unmarshal([]byte(out), &result), out)
		assert.Equal(t, "portfolio.pdf", result.Document.Filename)
		assert.Equal(t, 3, result.Report.Counts.Total())
	})

	var sessionID string

	t.Run("ask", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "ask", "What", "is", "Project", "Beta?", "--output")
		require.NoError(t, err, out)

		var result client.QueryResult
		require.NoError(t, json.Unmarshal([]byte(out), &result), out)
		assert.NotEmpty(t, result.Answer)
		sessionID = result.Meta.SessionID
	})

	t.Run("sessions", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "sessions", "list")
		require.NoError(t, err, out)
		assert.Contains(t, out, sessionID)

		out, err = env.RunCLI(workDir, "sessions", "show", sessionID)
		require.NoError(t, err, out)
		assert.Contains(t, out, "What is Project Beta?")

		out, err = env.RunCLI(workDir, "sessions", "delete", sessionID)
		require.NoError(t, err, out)
		assert.Contains(t, out, "Deleted session")
	})

	t.Run("documents", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "documents", "list")
		require.NoError(t, err, out)
		assert.Contains(t, out, "portfolio.pdf")
	})

	t.Run("auth status", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "auth", "status", "--verify")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Source: env")
	})
}
