package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/pkgmeta/repometa/internal/errors"
)

// RespondWithError writes err as the standard error envelope. Errors that
// are not envelopes yet are classified as processing failures, so a
// malformed purl answers 400 and an expired deadline 504.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var envelope *errors.ErrorEnvelope
	if err != nil && !stderrors.As(err, &envelope) {
		err = apperrors.FromProcessing(r.Context(), err)
	}
	apperrors.RespondWithError(w, r, err)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithError(w, r, err)
}
