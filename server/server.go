// Package server exposes posting and draft generation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"auto_note_article_publisher/generator"
	"auto_note_article_publisher/publisher"
)

// Poster runs one posting pipeline.
type Poster interface {
	Post(ctx context.Context, art publisher.Article) (*publisher.Result, error)
}

// Generator produces a draft from a spec.
type Generator interface {
	Generate(ctx context.Context, spec generator.Spec) (generator.Draft, error)
}

const (
	defaultPostTimeout     = 5 * time.Minute
	defaultGenerateTimeout = 60 * time.Second
	maxBodyBytes           = 4 << 20
)

type Server struct {
	poster Poster
	gen    Generator
	logger *zap.Logger

	// One account, one run at a time. Holding the slot means running.
	postSlot chan struct{}

	PostTimeout     time.Duration
	GenerateTimeout time.Duration
}

// New requires a poster; gen may be nil, which disables /api/generate.
func New(poster Poster, gen Generator, logger *zap.Logger) (*Server, error) {
	if poster == nil {
		return nil, errors.New("poster required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		poster:          poster,
		gen:             gen,
		logger:          logger,
		postSlot:        make(chan struct{}, 1),
		PostTimeout:     defaultPostTimeout,
		GenerateTimeout: defaultGenerateTimeout,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/posts", s.handlePost)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/healthz", s.handleHealth)
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type postReq struct {
	Title     string `json:"title"`
	Markdown  string `json:"markdown"`
	ImagePath string `json:"image_path"`
}

type postResp struct {
	OK         bool     `json:"ok"`
	RunID      string   `json:"run_id,omitempty"`
	State      string   `json:"state,omitempty"`
	URL        string   `json:"url,omitempty"`
	ArticleID  string   `json:"article_id,omitempty"`
	ArticleKey string   `json:"article_key,omitempty"`
	ImageKey   string   `json:"image_key,omitempty"`
	ImageError string   `json:"image_error,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Steps      []string `json:"steps,omitempty"`
}

type generateReq struct {
	Topic       string   `json:"topic"`
	Outline     []string `json:"outline"`
	Words       int      `json:"words"`
	Constraints []string `json:"constraints"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req postReq
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Markdown) == "" {
		http.Error(w, "title and markdown are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.PostTimeout)
	defer cancel()

	select {
	case s.postSlot <- struct{}{}:
		defer func() { <-s.postSlot }()
	case <-ctx.Done():
		http.Error(w, "another post is still running", http.StatusServiceUnavailable)
		return
	}
	res, err := s.poster.Post(ctx, publisher.Article{
		Title:     req.Title,
		Markdown:  req.Markdown,
		ImagePath: req.ImagePath,
	})

	resp := postResp{OK: err == nil}
	if res != nil {
		resp.RunID = res.RunID
		resp.State = string(res.State)
		resp.URL = res.URL
		resp.ArticleID = res.Draft.ID
		resp.ArticleKey = res.Draft.Key
		if res.Image != nil {
			resp.ImageKey = res.Image.Key
		}
		if res.ImageErr != nil {
			resp.ImageError = res.ImageErr.Error()
		}
		for _, st := range res.Transitions {
			resp.Steps = append(resp.Steps, string(st))
		}
	}
	if err != nil {
		var pe *publisher.PostError
		if errors.As(err, &pe) {
			resp.ErrorKind = string(pe.Kind)
			resp.Reason = pe.Error()
		} else {
			resp.Reason = err.Error()
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.gen == nil {
		http.Error(w, "generator not configured", http.StatusNotImplemented)
		return
	}
	var req generateReq
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.GenerateTimeout)
	defer cancel()
	draft, err := s.gen.Generate(ctx, generator.Spec{
		Topic:       req.Topic,
		Outline:     req.Outline,
		Words:       req.Words,
		Constraints: req.Constraints,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}
