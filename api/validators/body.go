package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// DefaultBodyLimit caps request bodies when the router does not set one.
const DefaultBodyLimit = 10 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSONBody strictly decodes the request body into dest and runs its
// struct tag rules.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer drain(r)
	decoder := json.NewDecoder(limit(r))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return decodeError(err)
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// DecodePatch reads a JSON object of field updates. Which keys are allowed
// is decided by the resource being written.
func DecodePatch(r *http.Request) (resource.Patch, error) {
	defer drain(r)
	patch := resource.Patch{}
	if err := json.NewDecoder(limit(r)).Decode(&patch); err != nil {
		if errors.Is(err, io.EOF) {
			return patch, nil
		}
		return nil, decodeError(err)
	}
	return patch, nil
}

func limit(r *http.Request) io.Reader {
	if r.Body == nil {
		return strings.NewReader("")
	}
	return io.LimitReader(r.Body, DefaultBodyLimit+1)
}

func drain(r *http.Request) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, r.Body)
	}
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Request body is too large")
	case errors.Is(err, io.EOF):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Request body is required")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Request body is too large or truncated")
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid request body").WithDetails([]string{err.Error()})
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := make([]string, 0, len(errs))
		for _, fieldErr := range errs {
			details = append(details, fmt.Sprintf("%s %s", fieldErr.Field(), validationMessage(fieldErr)))
		}
		sort.Strings(details)
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data. "+strings.Join(details, ". ")).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid input data")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
