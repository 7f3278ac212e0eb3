// Package mcp exposes the document question answering API as MCP tools over
// stdio, so agents can query indexed documents through the HTTP API.
package mcp

import (
	"context"
	"errors"

	"github.com/cloo-solutions/mmrag/internal/cli/client"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "mmrag"

// Backend is the subset of the HTTP API the tools call. *client.APIClient
// satisfies it.
type Backend interface {
	Query(ctx context.Context, req client.QueryRequest) (*client.QueryResult, error)
	ListSessions(ctx context.Context, cursor string, limit int) (*client.Page[client.Session], error)
}

type Server struct {
	backend Backend
	server  *mcp.Server
}

func NewServer(backend Backend, version string) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	s := &Server{
		backend: backend,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: version,
		}, nil),
	}
	s.registerTools()

	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
