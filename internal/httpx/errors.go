package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-commerce/internal/common"
)

// Handler is an HTTP handler that reports failures instead of rendering them.
type Handler func(http.ResponseWriter, *http.Request) error

// ErrorHandler is the single place translating errors into JSON envelopes.
type ErrorHandler struct {
	Logger zerolog.Logger
	// DevMode exposes raw messages of unclassified errors.
	DevMode bool
	// Forward receives errors raised after a response was already started.
	Forward func(*http.Request, error)
}

// Wrap adapts an error-returning handler into an http.HandlerFunc.
func (h ErrorHandler) Wrap(fn Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tw := Track(w)
		if err := fn(tw, r); err != nil {
			h.Handle(tw, r, err)
		}
	}
}

// Handle renders err as exactly one JSON error response.
func (h ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	if Written(w) {
		h.forward(r, err)
		return
	}
	status, body := h.Classify(err)
	h.log(r, status, err)
	common.JSON(w, status, body)
}

// Classify picks the status and envelope for err. Rules are evaluated in a
// fixed order and the first match wins.
func (h ErrorHandler) Classify(err error) (int, common.ErrorEnvelope) {
	appErr, _ := common.AsAppError(err)
	kind := common.KindOf(err)
	message := err.Error()
	lower := strings.ToLower(message)

	switch {
	case kind == common.KindValidation:
		body := common.ErrorEnvelope{Message: message}
		if len(appErr.Errors) > 0 {
			body.Errors = appErr.Errors
		}
		return http.StatusBadRequest, body
	case kind == common.KindUnauthorized || strings.Contains(lower, "unauthorized"):
		return http.StatusUnauthorized, common.ErrorEnvelope{Message: message}
	case kind == common.KindNotFound || strings.Contains(lower, "not found"):
		return http.StatusNotFound, common.ErrorEnvelope{Message: message}
	case kind == common.KindUpstream:
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		body := common.ErrorEnvelope{Message: message, Details: appErr.Details}
		if appErr.Err != nil {
			body.Error = appErr.Err.Error()
		}
		return status, body
	case kind == common.KindPersistence:
		return http.StatusBadRequest, common.ErrorEnvelope{Message: message, Error: appErr.Code}
	}

	body := common.ErrorEnvelope{Message: "internal server error"}
	if h.DevMode {
		body.Message = message
		body.Error = rootCause(err).Error()
	}
	return http.StatusInternalServerError, body
}

func (h ErrorHandler) forward(r *http.Request, err error) {
	if h.Forward != nil {
		h.Forward(r, err)
		return
	}
	trace.SpanFromContext(r.Context()).RecordError(err)
	h.Logger.Debug().Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("error after response started")
}

func (h ErrorHandler) log(r *http.Request, status int, err error) {
	evt := h.Logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = h.Logger.Error()
	}
	evt.Err(err).
		Str("kind", common.KindOf(err).String()).
		Int("status", status).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request failed")
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
