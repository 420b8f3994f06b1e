package api

import (
	"net/http"
)

type Server struct {
	mux      *http.ServeMux
	handlers *Handlers
}

func NewServer(handlers *Handlers) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		handlers: handlers,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Сборка бандлов и история
	s.mux.HandleFunc("POST /api/bundles", s.handlers.BuildBundle)
	s.mux.HandleFunc("GET /api/builds", s.handlers.GetBuilds)
	s.mux.HandleFunc("GET /api/status", s.handlers.GetStatus)

	// Журнал ClickHouse
	s.mux.HandleFunc("GET /api/journal", s.handlers.GetJournalEvents)

	// Уведомления о сборках (SSE, WebSocket)
	s.mux.HandleFunc("GET /api/events", s.handlers.HandleSSE)
	s.mux.HandleFunc("GET /api/ws", s.handlers.HandleWS)

	// Публичный каталог со сборками
	s.mux.Handle("GET /", s.handlers.static)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
