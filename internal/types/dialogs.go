package types

import "strings"

// DefaultOptionWeight is applied to continue options created without a weight.
const DefaultOptionWeight = 1.0

// CreateOpenerRequest represents the request to create a conversation opener.
type CreateOpenerRequest struct {
	Text    string `json:"text" validate:"required"`
	Context string `json:"context" validate:"required"`
}

// Normalize trims whitespace from all fields.
func (r *CreateOpenerRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
	r.Context = strings.TrimSpace(r.Context)
}

// Validate validates the CreateOpenerRequest using the validator.
func (r *CreateOpenerRequest) Validate() error {
	return validateStruct(r)
}

// UpdateOpenerRequest carries optional opener fields; nil fields are kept.
type UpdateOpenerRequest struct {
	Text    *string `json:"text,omitempty" validate:"omitnil,min=1"`
	Context *string `json:"context,omitempty" validate:"omitnil,min=1"`
}

// Normalize trims whitespace from present fields.
func (r *UpdateOpenerRequest) Normalize() {
	r.Text = trimPtr(r.Text)
	r.Context = trimPtr(r.Context)
}

// Validate validates the UpdateOpenerRequest using the validator.
func (r *UpdateOpenerRequest) Validate() error {
	return validateStruct(r)
}

// CreateOptionRequest represents a weighted reply option for an opener.
type CreateOptionRequest struct {
	Text   string   `json:"text" validate:"required"`
	Weight *float64 `json:"weight,omitempty" validate:"omitnil,gte=0"`
}

// Normalize trims whitespace from the option text.
func (r *CreateOptionRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
}

// Validate validates the CreateOptionRequest using the validator.
func (r *CreateOptionRequest) Validate() error {
	return validateStruct(r)
}

// WeightOrDefault returns the requested weight or DefaultOptionWeight.
func (r *CreateOptionRequest) WeightOrDefault() float64 {
	if r.Weight == nil {
		return DefaultOptionWeight
	}
	return *r.Weight
}

// UpdateOptionRequest carries optional continue option fields.
type UpdateOptionRequest struct {
	Text   *string  `json:"text,omitempty" validate:"omitnil,min=1"`
	Weight *float64 `json:"weight,omitempty" validate:"omitnil,gte=0"`
}

// Normalize trims whitespace from present fields.
func (r *UpdateOptionRequest) Normalize() {
	r.Text = trimPtr(r.Text)
}

// Validate validates the UpdateOptionRequest using the validator.
func (r *UpdateOptionRequest) Validate() error {
	return validateStruct(r)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
