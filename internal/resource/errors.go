package resource

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// NotFound builds the error returned when no visible row matches an id.
func NotFound(name string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("No %s found with that ID", name))
}

// Invalid turns a record's Validate result into a single validation error
// listing every violated rule.
func Invalid(err error) error {
	msgs := models.Violations(err)
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid input data. "+strings.Join(msgs, ". ")).WithDetails(msgs)
}

// translate maps storage errors onto the public taxonomy.
func (d Descriptor) translate(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case pkgerrors.As(err) != nil:
		return err
	case db.IsNotFound(err):
		return NotFound(d.Name)
	case db.IsUniqueViolation(err):
		msg := d.DuplicateMessage
		if msg == "" {
			msg = pkgerrors.MetadataFor(pkgerrors.CodeDuplicateKey).PublicMessage
		}
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateKey, err, msg)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("%s %s", action, d.Name))
	}
}
