// Package api exposes the job service over HTTP.
//
// The surface is deliberately small: submit a fine-tune job, poll its
// status, list a caller's jobs, and self-service API key registration.
// Callers authenticate with an api_key; a caller's view of the system is
// scoped to the jobs that key submitted.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	runway "github.com/inferent/runway"
	"github.com/inferent/runway/auth"
	"github.com/inferent/runway/id"
	"github.com/inferent/runway/job"
	"github.com/inferent/runway/service"
	"github.com/inferent/runway/tune"
)

// maxDatasetBytes bounds uploaded training datasets.
const maxDatasetBytes = 64 << 20

// KeyIssuer mints new API keys for /register.
type KeyIssuer func() string

// API wires the service into HTTP handlers.
type API struct {
	svc       *service.Service
	keys      auth.KeyStore
	runner    *tune.Runner
	modelsDir string
	issueKey  KeyIssuer
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithRateLimit applies a global request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *API) { a.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates the API. issueKey generates keys for /register; modelsDir is
// where uploaded datasets and trained adapters live.
func New(svc *service.Service, keys auth.KeyStore, runner *tune.Runner, modelsDir string, issueKey KeyIssuer, opts ...Option) *API {
	a := &API{
		svc:       svc,
		keys:      keys,
		runner:    runner,
		modelsDir: modelsDir,
		issueKey:  issueKey,
		logger:    slog.Default(),
	}
	if a.issueKey == nil {
		a.issueKey = id.NewAPIKey
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router builds the HTTP routing table.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	if a.limiter != nil {
		r.Use(a.throttle)
	}

	r.Get("/health", a.health)
	r.Post("/register", a.register)
	r.Post("/fine-tune", a.fineTune)
	r.Post("/train", a.train)
	r.Get("/job-status/{jobID}", a.jobStatus)
	r.Get("/list-all-jobs", a.listJobs)

	return r
}

func (a *API) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Email string `json:"email"`
}

type registerResponse struct {
	APIKey string `json:"api_key"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "email is required"})
		return
	}

	key := a.issueKey()
	if err := a.keys.PutKey(r.Context(), key, req.Email); err != nil {
		a.logger.Error("key registration failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "registration failed"})
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{APIKey: key})
}

func (a *API) fineTune(w http.ResponseWriter, r *http.Request) {
	if a.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "no trainer configured"})
		return
	}

	if err := r.ParseMultipartForm(maxDatasetBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart form"})
		return
	}

	apiKey := r.FormValue("api_key")
	// Reject bad keys before the dataset touches disk.
	if ok, err := a.keys.HasKey(r.Context(), apiKey); err != nil {
		a.logger.Error("key lookup failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	} else if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid API key"})
		return
	}

	baseModel := r.FormValue("base_model")
	if baseModel == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "base_model is required"})
		return
	}

	jobID := r.FormValue("job_id")
	if jobID == "" {
		jobID = id.NewJobID()
	} else if err := id.ValidateJobID(jobID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	file, _, err := r.FormFile("dataset")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "dataset file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxDatasetBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read dataset"})
		return
	}

	path, err := tune.WriteDataset(a.modelsDir, jobID, data)
	if err != nil {
		a.logger.Error("dataset save failed", slog.String("job_id", jobID), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to store dataset"})
		return
	}

	params := tune.DefaultParams()
	params.BaseModel = baseModel
	params.DatasetPath = path
	params.OutputDir = a.modelsDir + "/" + jobID

	rec, err := a.svc.Submit(r.Context(), apiKey, apiKey, jobID, job.TypeFineTune, a.runner.Capability(params))
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) train(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, errorBody{Error: "train jobs are not implemented"})
}

func (a *API) jobStatus(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("api_key")
	jobID := chi.URLParam(r, "jobID")

	rec, err := a.svc.GetStatus(r.Context(), apiKey, apiKey, jobID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("api_key")

	recs, err := a.svc.ListJobs(r.Context(), apiKey, apiKey)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*job.Record{}
	}

	writeJSON(w, http.StatusOK, recs)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps service errors onto HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runway.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid API key"})
	case errors.Is(err, runway.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, runway.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "job not found"})
	case errors.Is(err, runway.ErrJobActive):
		writeJSON(w, http.StatusConflict, errorBody{Error: "job is still in progress"})
	default:
		a.logger.Error("request failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
