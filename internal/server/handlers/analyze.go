package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkgmeta/repometa/internal/core"
	apperrors "github.com/pkgmeta/repometa/internal/errors"
)

// maxCommandBytes bounds an analysis request body.
const maxCommandBytes = 64 << 10

// CommandProcessor resolves one analysis command.
type CommandProcessor interface {
	Process(ctx context.Context, cmd core.AnalysisCommand) (core.ResultKey, core.AnalysisResult, error)
}

// AnalyzeResponse is the body returned by the analyze endpoint.
type AnalyzeResponse struct {
	Key    core.ResultKey      `json:"key"`
	Result core.AnalysisResult `json:"result"`
}

// AnalyzeHandler serves POST /v1/analyze with the same semantics as the
// stream consumer: the body is an analysis command, the response is the
// result keyed by package coordinates.
type AnalyzeHandler struct {
	Processor CommandProcessor
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Processor == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("analysis is not configured"))
		return
	}

	var cmd core.AnalysisCommand
	body := io.LimitReader(r.Body, maxCommandBytes)
	if err := json.NewDecoder(body).Decode(&cmd); err != nil {
		respondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeInvalidInput, err, "request body is not a valid analysis command"))
		return
	}
	if cmd.Component.PURL == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("component.purl is required"))
		return
	}

	key, result, err := h.Processor.Process(r.Context(), cmd)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{Key: key, Result: result})
}
