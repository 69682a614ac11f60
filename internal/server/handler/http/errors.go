package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/atinyakov/learncode/internal/content"
	"github.com/atinyakov/learncode/internal/envelope"
	"github.com/atinyakov/learncode/internal/lock"
	"github.com/atinyakov/learncode/internal/models"
	"github.com/atinyakov/learncode/internal/service"
	"github.com/atinyakov/learncode/internal/tutor"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// validate checks request payloads. Field names in errors use JSON tags.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

const maxBodySize = 1 << 20

// decodeJSON reads a JSON body into dst and validates it. The returned
// error text is safe to show to clients.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			ns := fe.Namespace()
			// drop the request struct name
			if i := strings.IndexByte(ns, '.'); i >= 0 {
				ns = ns[i+1:]
			}
			return fmt.Errorf("invalid %s: failed %s", ns, fe.Tag())
		}
		return errors.New("invalid body")
	}
	return nil
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes and actionable messages.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	http.Error(w, msg, status)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrNothingToRotate):
		return http.StatusConflict, "nothing to rotate"
	case errors.Is(err, models.ErrStaleKey):
		return http.StatusConflict, "settings changed concurrently, try again"
	case errors.Is(err, service.ErrNoConfig):
		return http.StatusPreconditionFailed, "AI configuration not found"
	case errors.Is(err, service.ErrAPIKeyRequired), errors.Is(err, tutor.ErrUnsupportedProvider):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, envelope.ErrMissingSecret):
		return http.StatusInternalServerError, "configuration missing"
	case envelope.IsCorrupted(err):
		return http.StatusUnprocessableEntity, "stored credential is corrupted, please reconfigure"
	case errors.Is(err, tutor.ErrUpstream):
		return http.StatusBadGateway, "AI provider request failed"
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable, "busy, try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
