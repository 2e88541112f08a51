// Package server exposes the HTTP surface of iiify: the import API, job
// status (polling, SSE and websocket) and the IIIF Presentation and Image
// endpoints.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/iiify/config"
	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/ingest"
	"github.com/teranos/iiify/internal/httpclient"
	"github.com/teranos/iiify/mets"
	"github.com/teranos/iiify/storage"
)

// MaxClients caps concurrent websocket feed connections
const MaxClients = 256

// Server wires storage, the import queue and the HTTP handlers together
type Server struct {
	cfg    *config.Config
	db     *sql.DB
	logger *zap.SugaredLogger

	fetcher       *mets.Fetcher
	queue         *ingest.Queue
	pool          *ingest.WorkerPool
	importer      *ingest.ManifestImporter
	manifests     *storage.ManifestStore
	images        *storage.ImageStore
	identifiers   *storage.IdentifierStore
	subscriptions *storage.SubscriptionStore

	mux        *http.ServeMux
	httpServer *http.Server

	// Websocket feed state
	clients    map[*feedClient]bool
	register   chan *feedClient
	unregister chan *feedClient
	mu         sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a fully wired server. Callers run it with Run and stop it
// by cancelling the context passed there.
func New(cfg *config.Config, db *sql.DB, logger *zap.SugaredLogger) *Server {
	client := httpclient.NewSaferClient(cfg.Import.FetchTimeout)
	fetcher := mets.NewFetcher(client, cfg.Import.ProbesPerSecond, logger)
	return newServer(cfg, db, fetcher, logger)
}

// newServer wires the server around an existing fetcher; tests inject a
// fetcher whose client may reach loopback addresses.
func newServer(cfg *config.Config, db *sql.DB, fetcher *mets.Fetcher, logger *zap.SugaredLogger) *Server {
	manifests := storage.NewManifestStore(db)
	images := storage.NewImageStore(db)
	queue := ingest.NewQueue(db)
	importer := ingest.NewManifestImporter(fetcher, manifests, images, cfg.Server.BaseURL, logger)

	s := &Server{
		cfg:           cfg,
		db:            db,
		logger:        logger.Named("server"),
		fetcher:       fetcher,
		queue:         queue,
		importer:      importer,
		manifests:     manifests,
		images:        images,
		identifiers:   storage.NewIdentifierStore(db),
		subscriptions: storage.NewSubscriptionStore(db),
		mux:           http.NewServeMux(),
		clients:       make(map[*feedClient]bool),
		register:      make(chan *feedClient),
		unregister:    make(chan *feedClient),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.pool = ingest.NewWorkerPool(s.ctx, queue, importer, ingest.WorkerPoolConfig{
		Workers:      cfg.Import.Workers,
		PollInterval: cfg.Import.PollInterval,
	}, logger)
	s.setupRoutes()

	s.wg.Add(1)
	go s.runFeed()
	return s
}

// Close stops the websocket feed and worker pool. Run calls this on its
// way out; tests that never call Run use it directly.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Handler returns the HTTP handler tree, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the worker pool, the websocket feed and the HTTP server,
// blocking until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer s.Close()

	s.pool.Start()
	defer s.pool.Stop()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("HTTP server listening",
			"addr", s.cfg.Server.Addr(),
			"base_url", s.cfg.Server.BaseURL,
		)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	case <-s.ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("HTTP server shutdown timed out", "error", err)
	}

	s.logger.Infow("Server stopped")
	return nil
}
