// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backendtest runs an in-process fake of the moderated chat backend.
//
// The fake speaks the same JSON as the real service, keeps users, tokens and
// session histories in memory, and can be scripted per test: fail the next
// call on a route, hold calls on a route until released, or replace the
// chat reply.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jeranaias/safechat-tui/internal/api"
)

// Route names used by FailNext, Hold and Calls.
const (
	RouteChat     = "chat"
	RouteSession  = "session"
	RouteHistory  = "history"
	RouteLogin    = "login"
	RouteRegister = "register"
	RouteMe       = "me"
	RouteLogout   = "logout"
	RouteHealth   = "health"
)

// ReplyFunc builds the chat reply for a request. username is the token owner.
type ReplyFunc func(req api.ChatRequest, username string) api.ChatResponse

type user struct {
	password string
	age      *int
}

type failure struct {
	status int
	detail any
}

// Server is a scripted fake backend.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]user
	tokens    map[string]string
	histories map[string][]api.HistoryEntry
	calls     map[string]int
	failures  map[string][]failure
	gates     map[string]chan struct{}
	reply     ReplyFunc
	chats     []api.ChatRequest
	seq       int
}

// New starts a fake backend and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:     make(map[string]user),
		tokens:    make(map[string]string),
		histories: make(map[string][]api.HistoryEntry),
		calls:     make(map[string]int),
		failures:  make(map[string][]failure),
		gates:     make(map[string]chan struct{}),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.track(RouteHealth, s.handleHealth))
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.track(RouteLogin, s.handleLogin))
			r.Post("/register", s.track(RouteRegister, s.handleRegister))
			r.Get("/me", s.track(RouteMe, s.authed(s.handleMe)))
			r.Post("/logout", s.track(RouteLogout, s.authed(s.handleLogout)))
		})
		r.Post("/chat", s.track(RouteChat, s.authed(s.handleChat)))
		r.Post("/chat/session/new", s.track(RouteSession, s.authed(s.handleNewSession)))
		r.Get("/chat/history/{sessionID}", s.track(RouteHistory, s.authed(s.handleHistory)))
	})
	return r
}

// =============================================================================
// SCRIPTING
// =============================================================================

// AddUser registers a user and returns a valid token for them.
// age <= 0 leaves the age unset.
func (s *Server) AddUser(username, password string, age int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user{password: password}
	if age > 0 {
		a := age
		u.age = &a
	}
	s.users[username] = u
	return s.issueLocked(username)
}

// FailNext makes the next call on route answer status with detail.
// detail may be a string or a list of field errors.
func (s *Server) FailNext(route string, status int, detail any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// Hold blocks calls on route until the returned release func runs.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// SetReply replaces the default chat reply.
func (s *Server) SetReply(fn ReplyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

// SeedHistory stores entries for a session.
func (s *Server) SeedHistory(sessionID string, entries []api.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionID] = append([]api.HistoryEntry(nil), entries...)
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Chats returns the chat requests received so far.
func (s *Server) Chats() []api.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.ChatRequest(nil), s.chats...)
}

// Client returns an api.Client pointed at the fake.
func (s *Server) Client(opts ...api.Option) *api.Client {
	return api.New(s.URL, opts...)
}

func (s *Server) issueLocked(username string) string {
	s.seq++
	token := fmt.Sprintf("tok-%s-%d", username, s.seq)
	s.tokens[token] = username
	return token
}

func (s *Server) nextSessionLocked() string {
	s.seq++
	return fmt.Sprintf("s%d", s.seq)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type ctxUser struct{}

// track counts the call, applies Hold gates and scripted failures.
func (s *Server) track(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		gate := s.gates[route]
		var f *failure
		if q := s.failures[route]; len(q) > 0 {
			f = &q[0]
			s.failures[route] = q[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if f != nil {
			writeJSON(w, f.status, map[string]any{"detail": f.detail})
			return
		}
		next(w, r)
	}
}

// authed requires a bearer token issued by this server.
func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, username string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		token := strings.TrimSpace(h[len("bearer "):])
		s.mu.Lock()
		username, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r, username)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	if !ok || u.password != req.Password {
		s.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := s.issueLocked(req.Username)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed body")
		return
	}

	var fields []map[string]any
	if len(req.Username) < 3 {
		fields = append(fields, fieldErr("username", "String should have at least 3 characters"))
	}
	if len(req.Password) < 6 {
		fields = append(fields, fieldErr("password", "String should have at least 6 characters"))
	}
	if req.Age != nil && (*req.Age < 1 || *req.Age > 120) {
		fields = append(fields, fieldErr("age", "Input should be between 1 and 120"))
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": fields})
		return
	}

	s.mu.Lock()
	if _, exists := s.users[req.Username]; exists {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Username already exists")
		return
	}
	s.users[req.Username] = user{password: req.Password, age: req.Age}
	token := s.issueLocked(req.Username)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, username string) {
	s.mu.Lock()
	u := s.users[username]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.Me{Username: username, Age: u.age, UserID: username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, username string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Successfully logged out",
		"username": username,
	})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request, username string) {
	s.mu.Lock()
	id := s.nextSessionLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.NewSessionResponse{SessionID: id, Created: true})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, username string) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	entries := append([]api.HistoryEntry{}, s.histories[id]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.HistoryResponse{
		SessionID:  id,
		Messages:   entries,
		TotalCount: len(entries),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, username string) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	s.mu.Lock()
	s.chats = append(s.chats, req)
	reply := s.reply
	age := 18
	if req.Age != nil {
		age = *req.Age
	} else if u := s.users[username]; u.age != nil {
		age = *u.age
	}
	s.mu.Unlock()

	var resp api.ChatResponse
	if reply != nil {
		resp = reply(req, username)
	} else {
		resp = s.defaultReply(req, age)
	}

	if !resp.AgeGate && resp.SessionID != "" {
		now := api.Timestamp{Time: time.Now()}
		s.mu.Lock()
		s.histories[resp.SessionID] = append(s.histories[resp.SessionID],
			api.HistoryEntry{Role: "user", Content: req.Message, Timestamp: now},
			api.HistoryEntry{Role: "bot", Content: resp.Response, Timestamp: now},
		)
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) defaultReply(req api.ChatRequest, age int) api.ChatResponse {
	if age < 8 {
		return api.ChatResponse{
			Response: "This chatbot is not available for very young users.",
			AgeGate:  true,
		}
	}
	sessionID := req.SessionID
	if sessionID == "" {
		s.mu.Lock()
		sessionID = s.nextSessionLocked()
		s.mu.Unlock()
	}
	band := "adult"
	switch {
	case age <= 12:
		band = "child"
	case age <= 17:
		band = "teen"
	}
	return api.ChatResponse{
		Response:  "echo: " + req.Message,
		SessionID: sessionID,
		AgeBand:   band,
		Risk:      &api.Risk{RiskLevel: "low"},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func fieldErr(field, msg string) map[string]any {
	return map[string]any{"loc": []string{"body", field}, "msg": msg, "type": "value_error"}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
