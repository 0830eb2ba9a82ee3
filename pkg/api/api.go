package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/indexer"
	"github.com/querybench/querybench/pkg/indexstore"
	"github.com/querybench/querybench/pkg/storage"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	storageCfg *config.StorageConfig
	reader     storage.Store
	indexStore indexstore.Store
	indexer    indexer.Indexer
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	storageCfg *config.StorageConfig,
) Server {
	return &server{
		log:        log.WithField("component", "api"),
		cfg:        cfg,
		storageCfg: storageCfg,
		done:       make(chan struct{}),
	}
}

// Start opens the index database, wires the storage reader, and starts
// the HTTP server.
func (s *server) Start(ctx context.Context) error {
	reader, err := storage.New(s.log, s.storageCfg)
	if err != nil {
		return fmt.Errorf("creating storage reader: %w", err)
	}

	s.reader = reader

	s.indexStore = indexstore.NewStore(s.log, &s.cfg.Database)
	if err := s.indexStore.Start(ctx); err != nil {
		return fmt.Errorf("starting index store: %w", err)
	}

	// Prepare the background indexer before building the router so the
	// index endpoints are wired, but do NOT start it yet — the HTTP
	// server must be listening first.
	if s.cfg.Indexing != nil && s.cfg.Indexing.Enabled {
		s.indexer = indexer.NewIndexer(
			s.log,
			s.indexStore,
			s.reader,
			"",
			s.cfg.IndexingInterval(),
			s.cfg.Indexing.Concurrency,
		)
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// Start the background indexer AFTER the API is listening so that
	// the server is reachable while the first (potentially slow) pass runs.
	if s.indexer != nil {
		if err := s.indexer.Start(ctx); err != nil {
			return fmt.Errorf("starting indexer: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the index store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.indexer != nil {
		if err := s.indexer.Stop(); err != nil {
			s.log.WithError(err).Warn("Indexer stop error")
		}
	}

	if s.indexStore != nil {
		if err := s.indexStore.Stop(); err != nil {
			return fmt.Errorf("stopping index store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
