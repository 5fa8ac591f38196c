package writer

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var transientHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var transientGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// transient reports whether retrying the same insert may succeed. Row level
// errors are transient only when every one of them is.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		for _, rowErr := range rowErrs {
			if !transient(rowErr.Errors) {
				return false
			}
		}
		return len(rowErrs) > 0
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		for _, inner := range multi {
			if !transient(inner) {
				return false
			}
		}
		return len(multi) > 0
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return transientGRPC[st.Code()]
	}
	return false
}
