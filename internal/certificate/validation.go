package certificate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ipfs/go-cid"

	dErrors "certchain/pkg/domain-errors"
)

// RequiredFields are the fields a draft cannot be submitted without.
var RequiredFields = []Field{FieldCertificateID, FieldStudentName, FieldCourseName}

// ValidationError lists the form fields that block submission.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})
	// Registration only fails on empty tags or nil funcs.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// IsContentID reports whether value parses as an IPFS content identifier.
func IsContentID(value string) bool {
	_, err := cid.Decode(value)
	return err == nil
}

// Warnings lists fields whose values are recorded as entered but look
// malformed. They never block submission.
func (d Draft) Warnings() []string {
	var fields []string
	if hash := strings.TrimSpace(d.IPFSHash); hash != "" && !IsContentID(hash) {
		fields = append(fields, string(FieldIPFSHash))
	}
	return fields
}

// ValidateForSubmission checks the draft can be handed to the ledger.
// The returned error is a CodeValidation domain error wrapping *ValidationError.
func (d Draft) ValidateForSubmission() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "draft validation failed")
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "notblank" {
			verr.Missing = append(verr.Missing, fe.Field())
			continue
		}
		verr.Invalid = append(verr.Invalid, fe.Field())
	}
	return dErrors.Wrap(verr, dErrors.CodeValidation, verr.Error())
}
