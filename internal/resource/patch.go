package resource

import (
	"encoding/json"
	"fmt"
	"sort"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// Patch is a decoded JSON object keyed by public field name.
type Patch map[string]json.RawMessage

// Set stores v under key, replacing any client supplied value.
func (p Patch) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p[key] = raw
	return nil
}

// Take removes key from the patch and returns its raw value.
func (p Patch) Take(key string) (json.RawMessage, bool) {
	raw, ok := p[key]
	delete(p, key)
	return raw, ok
}

// Has reports whether key is present.
func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// restrict fails when the patch carries keys outside allowed.
func (p Patch) restrict(allowed []string) error {
	permitted := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		permitted[k] = true
	}
	var rejected []string
	for k := range p {
		if !permitted[k] {
			rejected = append(rejected, fmt.Sprintf("%s cannot be set", k))
		}
	}
	if len(rejected) == 0 {
		return nil
	}
	sort.Strings(rejected)
	return pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data").WithDetails(rejected)
}

// applyTo overlays the patch onto dest through its JSON representation.
func (p Patch) applyTo(dest any) error {
	if len(p) == 0 {
		return nil
	}
	raw, err := json.Marshal(map[string]json.RawMessage(p))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid input data").WithDetails([]string{describeDecodeError(err)})
	}
	return nil
}

func describeDecodeError(err error) string {
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok && typeErr.Field != "" {
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	return err.Error()
}
