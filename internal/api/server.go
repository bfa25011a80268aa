// Package api implements the query surface (C6): the HTTP front-end over
// an Engine. Routing is gorilla/mux; request bodies and responses are
// JSON per the external interface table.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/roastedledger/utxo-indexer/internal/engine"
	"github.com/roastedledger/utxo-indexer/internal/logging"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Server is the HTTP API in front of an Engine.
type Server struct {
	engine *engine.Engine
	log    *logging.Logger
	http   *http.Server
}

// New builds a Server listening on addr, routing to eng.
func New(eng *engine.Engine, log *logging.Logger, addr string) *Server {
	s := &Server{engine: eng, log: log}

	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoverMiddleware)

	r.HandleFunc("/", s.handleWelcome).Methods(http.MethodGet)
	r.HandleFunc("/blocks", s.handleSubmitBlock).Methods(http.MethodPost)
	r.HandleFunc("/blocks", s.handleListBlocks).Methods(http.MethodGet)
	r.HandleFunc("/balance/{address}", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/rollback", s.handleRollback).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start blocks serving HTTP until the server is shut down or fails.
func (s *Server) Start() error {
	s.log.Infof("listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.requestLogger(r).Errorf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(r *http.Request) *logging.Logger {
	id, _ := r.Context().Value(requestIDKey).(string)
	return s.log.With("request_id", id)
}
