// Package schema validates inbound payloads before they reach the pipeline.
package schema

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"transcript-insights-service/internal/models"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid payload")

// Validator checks struct tags and transcript limits.
type Validator struct {
	validate      *validator.Validate
	maxTextLength int
}

// New creates a validator. A non-positive maxTextLength uses models.MaxTextLength.
func New(maxTextLength int) *Validator {
	if maxTextLength <= 0 {
		maxTextLength = models.MaxTextLength
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{validate: v, maxTextLength: maxTextLength}
}

// MaxTextLength returns the configured text limit in characters.
func (v *Validator) MaxTextLength() int {
	return v.maxTextLength
}

// Validate checks the validate struct tags of event.
func (v *Validator) Validate(event any) error {
	err := v.validate.Struct(event)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.Wrapf(ErrInvalid, "field %s failed %q", fe.Field(), fe.Tag())
	}
	return errors.Wrap(ErrInvalid, err.Error())
}

// ValidateTranscript checks a transcript payload. The length limit applies to
// the raw text; the notblank tag ignores surrounding whitespace.
func (v *Validator) ValidateTranscript(p models.TranscriptPayload) error {
	if err := v.Validate(p); err != nil {
		return err
	}
	if n := p.TextLength(); n > v.maxTextLength {
		return errors.Wrapf(ErrInvalid, "field text has %d characters, limit is %d", n, v.maxTextLength)
	}
	return nil
}
