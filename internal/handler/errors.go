package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/coupon"
)

const msgInternal = "Something went wrong"

var errRouteNotFound = apperr.New(apperr.ErrNotFound, "API not found")

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrDuplicateKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes the error envelope for err. Unclassified errors are logged
// and reported as a generic 500.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	f := failure{message: apperr.Message(err)}

	var (
		invalid *coupon.InvalidCouponError
		verr    *apperr.ValidationError
		dup     *apperr.DuplicateKeyError
	)
	switch {
	case errors.As(err, &invalid):
		f.message = invalid.Error()
	case errors.As(err, &verr):
		for _, fe := range verr.Fields {
			f.fields = append(f.fields, fieldMessage{path: fe.Path, message: fe.Message})
		}
	case errors.As(err, &dup):
		f.fields = []fieldMessage{{path: dup.Field, message: dup.Error()}}
	}

	if status == http.StatusInternalServerError || f.message == "" {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		status = http.StatusInternalServerError
		f = failure{message: msgInternal}
	}
	if !h.cfg.Production {
		f.stack = fmt.Sprintf("%+v", err)
	}
	writeEnvelope(w, status, f)
}
