package types

import "strings"

// CreateProfileRequest represents the request to create a user profile.
type CreateProfileRequest struct {
	Name        string  `json:"name" validate:"required"`
	Age         *int    `json:"age" validate:"required,gte=0,lte=150"`
	Source      string  `json:"source" validate:"required"`
	TelegramTag *string `json:"telegram_tag,omitempty"`
	BirthDate   *Date   `json:"birth_date,omitempty"`
}

// Normalize trims whitespace from string fields.
func (r *CreateProfileRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Source = strings.TrimSpace(r.Source)
	r.TelegramTag = trimPtr(r.TelegramTag)
}

// Validate validates the CreateProfileRequest using the validator.
func (r *CreateProfileRequest) Validate() error {
	return validateStruct(r)
}

// UpdateProfileRequest carries optional profile fields. Only non-nil fields
// are merged onto the stored profile.
type UpdateProfileRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,min=1"`
	Age         *int    `json:"age,omitempty" validate:"omitnil,gte=0,lte=150"`
	Source      *string `json:"source,omitempty" validate:"omitnil,min=1"`
	TelegramTag *string `json:"telegram_tag,omitempty"`
	BirthDate   *Date   `json:"birth_date,omitempty"`
}

// Normalize trims whitespace from present string fields.
func (r *UpdateProfileRequest) Normalize() {
	r.Name = trimPtr(r.Name)
	r.Source = trimPtr(r.Source)
	r.TelegramTag = trimPtr(r.TelegramTag)
}

// Validate validates the UpdateProfileRequest using the validator.
func (r *UpdateProfileRequest) Validate() error {
	return validateStruct(r)
}

// HobbyRequest represents a hobby to attach to a profile.
type HobbyRequest struct {
	Name string `json:"name" validate:"required"`
}

// Normalize trims whitespace from the hobby name.
func (r *HobbyRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

// Validate validates the HobbyRequest using the validator.
func (r *HobbyRequest) Validate() error {
	return validateStruct(r)
}

// NoteRequest represents a freeform key/value note on a profile.
type NoteRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// Normalize trims whitespace from key and value.
func (r *NoteRequest) Normalize() {
	r.Key = strings.TrimSpace(r.Key)
	r.Value = strings.TrimSpace(r.Value)
}

// Validate validates the NoteRequest using the validator.
func (r *NoteRequest) Validate() error {
	return validateStruct(r)
}

// ProgressRequest records a profile checkpoint against exactly one story or
// opener.
type ProgressRequest struct {
	StoryID    *int64 `json:"story_id,omitempty" validate:"omitnil,gt=0"`
	OpenerID   *int64 `json:"opener_id,omitempty" validate:"omitnil,gt=0"`
	Checkpoint string `json:"checkpoint" validate:"required,max=255"`
}

// Normalize trims whitespace from the checkpoint.
func (r *ProgressRequest) Normalize() {
	r.Checkpoint = strings.TrimSpace(r.Checkpoint)
}

// Validate validates the ProgressRequest and requires exactly one target.
func (r *ProgressRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if (r.StoryID == nil) == (r.OpenerID == nil) {
		return &ValidationError{Field: "story_id", Message: "exactly one of story_id or opener_id is required"}
	}
	return nil
}
