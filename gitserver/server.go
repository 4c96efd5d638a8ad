// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http/cgi"
	"strconv"

	"github.com/hokipoki/hokipoki/lib/tunnel"
	"github.com/hokipoki/hokipoki/transport"
)

// Server is one task's ephemeral git-smart-HTTP service: a bare
// repository, a bearer-authenticated HTTP listener dispatching to
// git-http-backend, and a tunnel publishing it to the provider.
type Server struct {
	TaskID  string
	HomeDir string
	Bearer  string
	Tunnel  *tunnel.Client
	Logger  *slog.Logger

	bareDir         string
	scratchWorkTree string

	listener  *transport.TCPListener
	serveDone chan error
	tunnelH   *tunnel.Handle
	publicURL string
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// gitProjectRoot is the directory passed to git-http-backend as
// GIT_PROJECT_ROOT: the parent of every task's bare repo.
func (s *Server) gitProjectRoot() string {
	return tmpDir(s.HomeDir)
}

// Start binds an HTTP listener on all interfaces (0.0.0.0) at an
// OS-assigned free port,
// serves git-smart-HTTP behind bearer authentication, and opens a
// tunnel exposing it. It must be called after Initialize.
func (s *Server) Start(ctx context.Context) error {
	listener, err := transport.NewTCPListener("0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("gitserver: binding listener: %w", err)
	}
	s.listener = listener

	backend := &cgi.Handler{
		Path: "git",
		Args: []string{"http-backend"},
		Dir:  s.gitProjectRoot(),
		Env: []string{
			"GIT_PROJECT_ROOT=" + s.gitProjectRoot(),
			"GIT_HTTP_EXPORT_ALL=1",
		},
	}

	s.serveDone = make(chan error, 1)
	go func() {
		err := listener.Serve(ctx, requireBearer(s.Bearer, backend))
		s.serveDone <- err
	}()

	_, portStr, err := net.SplitHostPort(listener.Address())
	if err != nil {
		listener.Close()
		return fmt.Errorf("gitserver: parsing listener address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		listener.Close()
		return fmt.Errorf("gitserver: parsing listener port: %w", err)
	}

	handle, err := s.Tunnel.Open(ctx, tunnel.Options{LocalPort: port})
	if err != nil {
		listener.Close()
		return fmt.Errorf("gitserver: opening tunnel: %w", err)
	}
	s.tunnelH = handle
	s.publicURL = handle.PublicURL + "/" + s.TaskID + ".git"

	s.logger().Info("ephemeral git server started", "task", s.TaskID, "url", s.publicURL)
	return nil
}

// ServerConfig is what getConfig() returns: the URL the provider should
// clone/push to, and the bearer token to authenticate with.
type ServerConfig struct {
	URL    string
	Bearer string
}

// GetConfig returns the {url, bearer} pair to hand to the provider.
func (s *Server) GetConfig() ServerConfig {
	return ServerConfig{URL: s.publicURL, Bearer: s.Bearer}
}

// Stop tears the tunnel and HTTP listener down, shreds every file in
// the repo tree, and removes the directories. Best-effort: errors from
// individual steps are logged, not propagated, since the underlying
// tmpfs destruction on process/container exit is the ultimate
// guarantee regardless.
func (s *Server) Stop(ctx context.Context) error {
	if s.tunnelH != nil {
		if err := s.tunnelH.Close(); err != nil {
			s.logger().Warn("closing tunnel failed", "error", err)
		}
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger().Warn("closing git http listener failed", "error", err)
		}
		<-s.serveDone
	}

	if s.bareDir != "" {
		if err := shredTree(s.bareDir); err != nil {
			s.logger().Warn("shredding bare repo failed", "error", err)
		}
	}
	if s.scratchWorkTree != "" {
		if err := shredTree(s.scratchWorkTree); err != nil {
			s.logger().Warn("shredding scratch work tree failed", "error", err)
		}
	}
	return nil
}
