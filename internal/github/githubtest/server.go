// Package githubtest provides an in-memory stand-in for the subset of the
// GitHub REST API that pipecheck talks to.
package githubtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/atakanatali/pipecheck/internal/github"
)

type Dispatch struct {
	WorkflowID int64
	Request    github.DispatchRequest
}

type Server struct {
	*httptest.Server

	Token string

	mu         sync.Mutex
	nextID     int64
	hooks      map[string][]github.Hook
	workflows  map[string][]github.Workflow
	dispatches []Dispatch
	failures   map[string]int
}

// NewServer starts a fake API that only accepts requests bearing token.
func NewServer(token string) *Server {
	s := &Server{
		Token:     token,
		nextID:    1000,
		hooks:     make(map[string][]github.Hook),
		workflows: make(map[string][]github.Workflow),
		failures:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Get("/repos/{owner}/{repo}/hooks", s.listHooks)
	r.Post("/repos/{owner}/{repo}/hooks", s.createHook)
	r.Get("/repos/{owner}/{repo}/actions/workflows", s.listWorkflows)
	r.Post("/repos/{owner}/{repo}/actions/workflows/{id}/dispatches", s.dispatch)

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) AddWorkflow(repo string, wf github.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[repo] = append(s.workflows[repo], wf)
}

func (s *Server) AddHook(repo string, hook github.Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hook.ID == 0 {
		s.nextID++
		hook.ID = s.nextID
	}
	s.hooks[repo] = append(s.hooks[repo], hook)
}

func (s *Server) Hooks(repo string) []github.Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]github.Hook(nil), s.hooks[repo]...)
}

func (s *Server) Dispatches() []Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Dispatch(nil), s.dispatches...)
}

// FailWith makes every request whose "METHOD path-suffix" key matches
// respond with status.
func (s *Server) FailWith(method, pathSuffix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+pathSuffix] = status
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		s.mu.Lock()
		for key, status := range s.failures {
			method, suffix, _ := strings.Cut(key, " ")
			if r.Method == method && strings.HasSuffix(r.URL.Path, suffix) {
				s.mu.Unlock()
				writeError(w, status, http.StatusText(status))
				return
			}
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func repoKey(r *http.Request) string {
	return chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
}

func page(r *http.Request, n int) (int, int) {
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage <= 0 {
		perPage = 30
	}
	p, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || p <= 0 {
		p = 1
	}
	start := min((p-1)*perPage, n)
	end := min(start+perPage, n)
	return start, end
}

func (s *Server) listHooks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hooks := s.hooks[repoKey(r)]
	start, end := page(r, len(hooks))
	out := append([]github.Hook{}, hooks[start:end]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createHook(w http.ResponseWriter, r *http.Request) {
	var req github.CreateHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Config.URL == "" {
		writeError(w, http.StatusUnprocessableEntity, "config.url is required")
		return
	}

	key := repoKey(r)
	s.mu.Lock()
	for _, h := range s.hooks[key] {
		if h.Config.URL == req.Config.URL {
			s.mu.Unlock()
			writeError(w, http.StatusUnprocessableEntity, "Hook already exists on this repository")
			return
		}
	}
	s.nextID++
	hook := github.Hook{
		ID:     s.nextID,
		Name:   req.Name,
		Active: req.Active,
		Events: req.Events,
		Config: github.HookConfig{URL: req.Config.URL, ContentType: req.Config.ContentType, InsecureSSL: "0"},
	}
	s.hooks[key] = append(s.hooks[key], hook)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, hook)
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	wfs := s.workflows[repoKey(r)]
	start, end := page(r, len(wfs))
	out := map[string]any{
		"total_count": len(wfs),
		"workflows":   append([]github.Workflow{}, wfs[start:end]...),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	var req github.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Ref == "" {
		writeError(w, http.StatusUnprocessableEntity, "ref is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, wf := range s.workflows[repoKey(r)] {
		if wf.ID == id {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("workflow %d not found", id))
		return
	}
	s.dispatches = append(s.dispatches, Dispatch{WorkflowID: id, Request: req})
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
