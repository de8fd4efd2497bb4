package resourceservice

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/meridianhq/meridian/internal/apperr"
	"github.com/meridianhq/meridian/internal/models"
)

// Payload is the full set of writable resource fields.
type Payload struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
}

func (p *Payload) applyDefaults() {
	if p.Status == "" {
		p.Status = models.StatusActive
	}
}

// Validate checks the payload and returns an *apperr.ValidationError with
// per-field messages on failure.
func (p Payload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Description, validation.Length(0, 4000)),
		validation.Field(&p.Status, validation.Required, validation.In(models.StatusActive, models.StatusInactive)),
		validation.Field(&p.Tags, validation.Each(validation.Required, validation.Length(1, 64))),
	)
	return asValidationError(err)
}

// PatchPayload carries only the fields present in a partial update.
type PatchPayload struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Tags        *[]string      `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
}

// asValidationError converts ozzo's field-keyed error map into the
// domain validation error so the API layer can emit a detail list.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := &apperr.ValidationError{}
	for _, f := range fields {
		out.Fields = append(out.Fields, apperr.FieldError{Field: f, Message: verrs[f].Error()})
	}
	return out
}
