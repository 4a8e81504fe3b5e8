// Package api は関連付けエンジンのHTTPインターフェースを提供します
// ジョブの投入は202を即時返却し、進捗はステータスのポーリングで追跡します
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/resellkit/correlate/internal/module/correlation/application"
	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

// Server は関連付けAPIのHTTPハンドラ群を保持します
type Server struct {
	orchestrator *application.Orchestrator
	apiToken     string
	logger       *slog.Logger
}

// NewServer は新しいServerを作成します
// apiTokenが空の場合、Bearer認証は行いません
func NewServer(orchestrator *application.Orchestrator, apiToken string, logger *slog.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		apiToken:     apiToken,
		logger:       logger,
	}
}

// Router はAPIのルーティングを構築します
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Route("/api/v1/correlations", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs/{jobID}", s.handleStatus)
		r.Get("/", s.handleCheck)
	})

	return r
}

// authenticate はBearerトークンを検証します（トークン未設定時は素通し）
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" && r.Header.Get("Authorization") != "Bearer "+s.apiToken {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// submitRequest はジョブ投入リクエストのボディ
type submitRequest struct {
	SeedASIN            string `json:"seedAsin"`
	OwnerID             string `json:"ownerId"`
	InstructionOverride string `json:"instructionOverride,omitempty"`
}

// submitResponse はジョブ投入レスポンス
type submitResponse struct {
	JobID  uuid.UUID        `json:"jobId"`
	Status models.JobStatus `json:"status"`
}

// handleSubmit はジョブを受け付け、202と共にジョブIDを返します
// パイプラインの完了は待ちません
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SeedASIN == "" || req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "seedAsin and ownerId are required")
		return
	}

	job, err := s.orchestrator.Submit(r.Context(), req.SeedASIN, req.OwnerID, req.InstructionOverride)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidASIN):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrJobAlreadyActive):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("job submission failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to submit job")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: job.Status})
}

// handleStatus はジョブの現在状態を返します
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := s.orchestrator.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("status query failed", "jobID", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query job status")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// checkResponse は既存関連付け照会のレスポンス
type checkResponse struct {
	Exists       bool                       `json:"exists"`
	Correlations []models.CorrelationRecord `json:"correlations"`
	Count        int                        `json:"count"`
}

// handleCheck は既存の関連付けを返します（パイプラインは起動しません）
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	seedASIN := r.URL.Query().Get("asin")
	ownerID := r.URL.Query().Get("ownerId")
	if seedASIN == "" || ownerID == "" {
		writeError(w, http.StatusBadRequest, "asin and ownerId query parameters are required")
		return
	}

	records, err := s.orchestrator.CheckExisting(r.Context(), seedASIN, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidASIN) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("correlation check failed", "seed", seedASIN, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check correlations")
		return
	}

	if records == nil {
		records = []models.CorrelationRecord{}
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Exists:       len(records) > 0,
		Correlations: records,
		Count:        len(records),
	})
}

// ListenAndServe はHTTPサーバを起動し、コンテキストの終了で停止します
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	s.logger.Info("HTTP server started", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
