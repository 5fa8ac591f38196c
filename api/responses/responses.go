package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

type debugKey struct{}

// WithDebug marks ctx so error responses carry the error chain and stack.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey{}, enabled)
}

func debugEnabled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(debugKey{}).(bool)
	return v
}

// Document is the inner wrapper of every data payload: {"data": ...}.
type Document struct {
	Data any `json:"data"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Status: statusSuccess, Data: data})
}

// WriteDocument responds with a single record.
func WriteDocument(w http.ResponseWriter, status int, doc any) {
	WriteSuccessStatus(w, status, Document{Data: doc})
}

// WriteList responds with a page of records and its row count.
func WriteList[T any](w http.ResponseWriter, docs []T) {
	if docs == nil {
		docs = []T{}
	}
	n := len(docs)
	writeJSON(w, http.StatusOK, types.SuccessEnvelope{
		Status:  statusSuccess,
		Results: &n,
		Data:    Document{Data: docs},
	})
}

// WriteMessage responds with a bare status message.
func WriteMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, types.SuccessEnvelope{Status: statusSuccess, Message: message})
}

// WriteToken responds with a freshly issued token and the user it belongs to.
func WriteToken(w http.ResponseWriter, status int, token string, user any) {
	writeJSON(w, status, types.SuccessEnvelope{
		Status: statusSuccess,
		Token:  token,
		Data:   map[string]any{"user": user},
	})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError renders err as the failure envelope. Operational errors keep
// their message; the rest are masked unless the request runs in debug mode.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())
	debug := debugEnabled(ctx)

	msg := meta.PublicMessage
	if (meta.Operational || debug) && typed.Message() != "" {
		msg = typed.Message()
	}

	payload := types.ErrorEnvelope{
		Status:  statusFail,
		Code:    string(typed.Code()),
		Message: msg,
	}
	if meta.HTTPStatus >= http.StatusInternalServerError {
		payload.Status = statusError
	}
	if meta.DetailsAllowed {
		payload.Errors = typed.Details()
	}
	if debug {
		payload.Error = pkgerrors.Dump(err)
		payload.Stack = typed.Stack()
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		fields := dump.LogFields()
		fields["http_status"] = meta.HTTPStatus
		ctx = logg.WithFields(ctx, fields)
		if meta.Operational {
			logg.Warn(logg.WithField(ctx, "error", dump.Message), "request.fail")
		} else {
			logg.Error(ctx, "request.error", err)
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
