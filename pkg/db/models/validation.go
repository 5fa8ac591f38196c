package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

var fieldValidator = validator.New()

// Entity is the capability set shared by every persisted record: an
// identifier and a self-check run before each write.
type Entity interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	Validate() error
}

// Normalizer is implemented by records that derive or canonicalize fields
// before validation (slugs, lower-cased emails).
type Normalizer interface {
	Normalize()
}

// violations accumulates rule failures for a single record.
type violations struct {
	err error
}

func (v *violations) check(ok bool, format string, args ...any) {
	if !ok {
		v.err = multierr.Append(v.err, fmt.Errorf(format, args...))
	}
}

func (v *violations) result() error {
	return v.err
}

// Violations flattens an error produced by Validate into one message per
// violated rule.
func Violations(err error) []string {
	if err == nil {
		return nil
	}
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func isEmail(value string) bool {
	return fieldValidator.Var(value, "required,email") == nil
}

