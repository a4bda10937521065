package types

import "strings"

// Content format types understood by the story store.
const (
	FormatText  = "text"
	FormatAudio = "audio"
)

// CreateStoryRequest creates a story together with its first language,
// format and content.
type CreateStoryRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Language string `json:"language" validate:"required,len=2,alpha"`
	Format   string `json:"format" validate:"required,oneof=text audio"`
	Content  string `json:"content" validate:"required,notblank"`
}

// Normalize trims whitespace and lowercases the language code and format.
// Content is stored as sent.
func (r *CreateStoryRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Language = normalizeCode(r.Language)
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
}

// Validate validates the CreateStoryRequest using the validator.
func (r *CreateStoryRequest) Validate() error {
	return validateStruct(r)
}

// AddLanguageRequest adds one (language, format) content entry to a story.
type AddLanguageRequest struct {
	Language string `json:"language" validate:"required,len=2,alpha"`
	Format   string `json:"format" validate:"required,oneof=text audio"`
	Content  string `json:"content" validate:"required,notblank"`
}

// Normalize trims whitespace and lowercases the language code and format.
// Content is stored as sent.
func (r *AddLanguageRequest) Normalize() {
	r.Language = normalizeCode(r.Language)
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
}

// Validate validates the AddLanguageRequest using the validator.
func (r *AddLanguageRequest) Validate() error {
	return validateStruct(r)
}

// UpdateStoryRequest carries the optional story fields a client may change.
// Nil fields are left untouched.
type UpdateStoryRequest struct {
	Title *string `json:"title,omitempty" validate:"omitnil,min=1,max=255"`
}

// Normalize trims whitespace from present fields.
func (r *UpdateStoryRequest) Normalize() {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
}

// Validate validates the UpdateStoryRequest using the validator.
func (r *UpdateStoryRequest) Validate() error {
	return validateStruct(r)
}

// NormalizeLanguageCode lowercases and trims a language code taken from a path.
func NormalizeLanguageCode(code string) string {
	return normalizeCode(code)
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
