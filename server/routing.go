package server

import "net/http"

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes() {
	// Import API
	s.mux.HandleFunc("/api/import", s.recoverMiddleware(s.corsMiddleware(s.HandleImport)))
	s.mux.HandleFunc("/api/tasks", s.recoverMiddleware(s.corsMiddleware(s.HandleTasks)))
	s.mux.HandleFunc("/api/tasks/", s.recoverMiddleware(s.corsMiddleware(s.HandleTask))) // status and /stream sub-resource
	s.mux.HandleFunc("/api/tasks/notify", s.recoverMiddleware(s.corsMiddleware(s.HandleNotify)))
	s.mux.HandleFunc("/api/recent", s.recoverMiddleware(s.corsMiddleware(s.HandleRecent)))
	s.mux.HandleFunc("/api/resolve/", s.recoverMiddleware(s.corsMiddleware(s.HandleResolve)))

	// IIIF Presentation and Image APIs (open CORS, viewers embed these)
	s.mux.HandleFunc("/iiif/collection/", s.recoverMiddleware(s.corsMiddleware(s.HandleCollection)))
	s.mux.HandleFunc("/iiif/image/", s.recoverMiddleware(s.corsMiddleware(s.HandleImage)))
	s.mux.HandleFunc("/iiif/", s.recoverMiddleware(s.corsMiddleware(s.HandleManifestResource)))

	// Live job feed
	s.mux.HandleFunc("/ws", s.recoverMiddleware(s.HandleFeedWebSocket))
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
}

// corsMiddleware opens endpoints for cross-origin use. Manifests and
// images are meant to be embedded by third-party IIIF viewers, so the
// policy is a plain wildcard.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// recoverMiddleware turns handler panics into 500 responses instead of
// dropping the connection.
func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Errorw("Handler panic",
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next(w, r)
	}
}
