package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/edgeflare/dbapi/pkg/crud"
	"github.com/edgeflare/dbapi/pkg/httputil"
	"github.com/edgeflare/dbapi/pkg/value"
	"go.uber.org/zap"
)

var (
	errUpdateShape  = errors.New(`expected a JSON object of the form {"original": {...}, "updated": {...}}`)
	errBodyTooLarge = errors.New("request body too large")
)

// readBody reads the whole request body, bounded by the server's limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

// readFields reads the request body as a JSON object.
func (s *Server) readFields(w http.ResponseWriter, r *http.Request) (value.Fields, error) {
	body, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}
	return value.DecodeFields(body)
}

// fail writes the response for err. Caller mistakes are described to the client; anything
// else is logged and answered with a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ce *crud.Error
	switch {
	case errors.As(err, &ce):
		switch ce.Kind {
		case crud.KindInvalidInput:
			httputil.Error(w, http.StatusBadRequest, ce.Message)
		case crud.KindNotFound:
			httputil.Error(w, http.StatusNotFound, ce.Message)
		default:
			s.requestLogger(r).Warn("unresolvable identity", zap.Error(err))
			httputil.Problem(w, r, http.StatusInternalServerError, ce.Message)
		}
	case errors.Is(err, errBodyTooLarge):
		httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case isBodyError(err):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		s.requestLogger(r).Error("request failed", zap.String("route", r.Pattern), zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// isBodyError reports whether err came from decoding the client's JSON.
func isBodyError(err error) bool {
	return errors.Is(err, value.ErrEmptyBody) ||
		errors.Is(err, value.ErrNotObject) ||
		errors.Is(err, value.ErrInvalidJSON) ||
		errors.Is(err, errUpdateShape)
}

// requestLogger returns the access-log logger carrying the request id, or the server logger.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if l, ok := r.Context().Value(httputil.LogEntryCtxKey).(*zap.Logger); ok {
		return l
	}
	return s.logger.With(zap.String("req_id", httputil.RequestID(r)))
}
