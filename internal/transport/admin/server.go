// Package admin exposes record inspection and reset over HTTP.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"safespawn.ai/internal/persistence/recorddb"
	"safespawn.ai/internal/spawn/model"
	"safespawn.ai/internal/spawn/record"
)

// Store is the record surface the admin API needs.
type Store interface {
	GetRaw(ctx context.Context, player uuid.UUID) (string, bool, error)
	Put(ctx context.Context, player uuid.UUID, c model.Coordinate) error
	Delete(ctx context.Context, player uuid.UUID) (bool, error)
	List(ctx context.Context, limit int) ([]recorddb.Row, error)
}

type Server struct {
	store  Store
	known  func(world string) bool
	log    *log.Logger
	router *mux.Router
}

type recordView struct {
	PlayerID  string            `json:"player_id"`
	Raw       string            `json:"raw"`
	Location  *model.Coordinate `json:"location,omitempty"`
	Error     string            `json:"error,omitempty"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

// NewServer builds the router. With loopbackOnly set, record endpoints
// refuse non-local callers.
func NewServer(store Store, known func(string) bool, loopbackOnly bool, logger *log.Logger) *Server {
	s := &Server{store: store, known: known, log: logger, router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	records := s.router.PathPrefix("/v1/records").Subrouter()
	if loopbackOnly {
		records.Use(loopback)
	}
	records.HandleFunc("", s.list).Methods(http.MethodGet)
	records.HandleFunc("/{player}", s.get).Methods(http.MethodGet)
	records.HandleFunc("/{player}", s.put).Methods(http.MethodPut)
	records.HandleFunc("/{player}", s.del).Methods(http.MethodDelete)
	return s
}

func loopback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) Handler() http.Handler { return s.router }

// Mount lets the caller add routes (the WebSocket endpoint) to the same
// router.
func (s *Server) Mount(path string, h http.Handler) {
	s.router.Handle(path, h)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]recordView, 0, len(rows))
	for _, row := range rows {
		v := view(row.Player, row.Raw)
		v.UpdatedAt = row.UpdatedAt.Format(time.RFC3339)
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := s.playerID(w, r)
	if !ok {
		return
	}
	raw, found, err := s.store.GetRaw(r.Context(), id)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record"})
		return
	}
	writeJSON(w, http.StatusOK, view(id, raw))
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	id, ok := s.playerID(w, r)
	if !ok {
		return
	}
	var c model.Coordinate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if s.known != nil && !s.known(c.World) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown world"})
		return
	}
	if err := s.store.Put(r.Context(), id, c); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Printf("admin: set record for %s to %s", id, c)
	writeJSON(w, http.StatusOK, view(id, record.Encode(c)))
}

func (s *Server) del(w http.ResponseWriter, r *http.Request) {
	id, ok := s.playerID(w, r)
	if !ok {
		return
	}
	existed, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if !existed {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record"})
		return
	}
	s.log.Printf("admin: reset record for %s", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) playerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["player"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player must be a uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	s.log.Printf("admin: %v", err)
	writeJSON(w, code, map[string]string{"error": "internal error"})
}

func view(id uuid.UUID, raw string) recordView {
	v := recordView{PlayerID: id.String(), Raw: raw}
	c, err := record.Decode(raw)
	if err != nil {
		if errors.Is(err, record.ErrMalformed) {
			v.Error = "malformed"
		} else {
			v.Error = err.Error()
		}
		return v
	}
	v.Location = &c
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
