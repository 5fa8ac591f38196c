package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const (
	requestIDHeader  = "X-Request-Id"
	cloudTraceHeader = "X-Cloud-Trace-Context"
	maxRequestIDLen  = 128
)

// RequestID tags each request with an id taken from X-Request-Id, then from
// the load balancer's trace header, or freshly minted. The id is echoed back
// and attached to the log context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := incomingRequestID(r.Header)
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func incomingRequestID(h http.Header) string {
	if id := h.Get(requestIDHeader); usableRequestID(id) {
		return id
	}
	// TRACE_ID/SPAN_ID;o=OPTIONS
	if trace, _, _ := strings.Cut(h.Get(cloudTraceHeader), "/"); usableRequestID(trace) {
		return trace
	}
	return uuid.NewString()
}

// usableRequestID accepts short printable tokens so caller input cannot
// break header or log lines.
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}
