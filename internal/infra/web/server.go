package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/repository"
)

// Server exposes the read-only ops API: which threads exist, what phase
// each one is in, plus health and metrics. It never mutates workflow state.
type Server struct {
	states repository.WorkflowStateRepository
	auth   *AuthManager
	secret string
	log    *zerolog.Logger
}

func NewServer(states repository.WorkflowStateRepository, auth *AuthManager, operatorSecret string, logger *zerolog.Logger) *Server {
	return &Server{states: states, auth: auth, secret: operatorSecret, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/login", s.handleLogin)

	r.Route("/api/v1/threads", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListThreads)
		r.Get("/{threadID}", s.handleGetThread)
	})
	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.auth.cfg.HMACSecret) == 0 {
			s.log.Error().Msg("ops API secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Secret == "" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.secret == "" || body.Secret != s.secret {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// threadView is the trimmed state shown to operators. Materials content is
// deliberately left out; it can contain student text.
type threadView struct {
	ThreadID         string       `json:"thread_id"`
	Phase            model.Phase  `json:"phase"`
	JobID            string       `json:"job_id,omitempty"`
	Flags            model.Flags  `json:"flags"`
	CorrectionRounds int          `json:"correction_rounds"`
	UpdatedAt        string       `json:"updated_at"`
}

func toView(st *model.WorkflowState) threadView {
	return threadView{
		ThreadID:         st.ThreadID,
		Phase:            st.Phase,
		JobID:            st.JobID,
		Flags:            st.Flags,
		CorrectionRounds: st.CorrectionRounds,
		UpdatedAt:        st.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	states, err := s.states.List(r.Context(), nil, 100)
	if err != nil {
		s.log.Error().Err(err).Msg("list threads")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	views := make([]threadView, 0, len(states))
	for _, st := range states {
		views = append(views, toView(st))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	st, err := s.states.Find(r.Context(), nil, threadID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get thread")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toView(st))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
