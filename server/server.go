// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes retrieval and answering over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultAddr matches the port the service has always listened on.
	DefaultAddr = ":8000"

	// DefaultMaxBodyBytes bounds request bodies.
	DefaultMaxBodyBytes = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Retriever assembles context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}

// Answerer produces a generated answer for a query.
type Answerer interface {
	Answer(ctx context.Context, query string, topK int) (string, error)
}

type Server struct {
	retriever    Retriever
	answerer     Answerer
	addr         string
	maxBodyBytes int64
	logger       *slog.Logger
	engine       *gin.Engine
}

type Option func(*Server) error

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithAddr sets the listen address used by Run.
func WithAddr(addr string) Option {
	return func(s *Server) error {
		if addr == "" {
			return ErrInvalidAddr
		}
		s.addr = addr
		return nil
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) error {
		if n > 0 {
			s.maxBodyBytes = n
		}
		return nil
	}
}

// New builds the HTTP surface. answerer may be nil, in which case /query is
// not registered.
func New(retriever Retriever, answerer Answerer, opts ...Option) (*Server, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	s := &Server{
		retriever:    retriever,
		answerer:     answerer,
		addr:         DefaultAddr,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), requestLogger(s.logger), bodyLimit(s.maxBodyBytes))

	engine.GET("/healthz", s.healthz)
	engine.POST("/retrieve", s.retrieve)
	if answerer != nil {
		engine.POST("/query", s.query)
	}
	s.engine = engine
	return s, nil
}

// Handler returns the underlying gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Addr() string {
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
