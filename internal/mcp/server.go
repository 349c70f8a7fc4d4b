// Package mcp exposes portfolio sessions as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/session"
)

// ServerName is the implementation name announced to clients
const ServerName = "tyche"

// Server holds the state for the MCP server
type Server struct {
	store  *session.Store
	logger domain.Logger
	server *mcp.Server
}

// NewServer creates a new MCP server over the sessions of store
func NewServer(store *session.Store, version string, logger domain.Logger) *Server {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	s := &Server{
		store:  store,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
	}
	s.registerTools()
	return s
}

// Run serves requests over the transport until the client disconnects or ctx ends
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Infof("mcp server starting")
	if err := s.server.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// ServeStdio serves requests over standard input and output
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches a single transport and returns without blocking
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) session(id string) (*session.Session, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		s.logger.Warnf("mcp: %v", err)
		return nil, err
	}
	return sess, nil
}
