package api

import (
	"net/http"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/services/transcript"
	"github.com/nijaru/yt-transcripts/validation"
)

type TranscriptHandler struct {
	service   transcript.Service
	validator *validation.Validator
}

type createTranscriptRequest struct {
	URL string `json:"url"`
}

func NewTranscriptHandler(service transcript.Service, validator *validation.Validator) *TranscriptHandler {
	return &TranscriptHandler{
		service:   service,
		validator: validator,
	}
}

// HandleCreate handles POST /api/v1/transcripts
func (h *TranscriptHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		AllowedMethods: []string{http.MethodPost},
		RequireJSON:    true,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	var req createTranscriptRequest
	if err := readJSON(w, r, h.validator.MaxBodyBytes(), &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.validator.ValidateURL(req.URL); err != nil {
		respondError(w, r, err)
		return
	}

	summary, err := h.service.Ingest(r.Context(), user.ID, req.URL)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, summary)
}

// HandleList handles GET /api/v1/transcripts
func (h *TranscriptHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	opts, err := h.validator.ParseListOptions(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.service.List(r.Context(), user.ID, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, result)
}

// HandleGet handles GET /api/v1/transcripts/{id}
func (h *TranscriptHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "TranscriptHandler.HandleGet"

	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "Transcript ID is required"))
		return
	}

	t, err := h.service.Get(r.Context(), user.ID, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, t)
}
