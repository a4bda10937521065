// Package story owns the Story/Language/Format/Content graph and enforces its
// invariants on every mutation.
//
// A Story exclusively owns its Languages and each Language owns its Contents.
// Formats are shared between stories and are only ever linked or unlinked,
// never deleted. Every operation runs inside a single unit of work obtained
// from a Transactor.
package story

// Story is a titled piece of content available in one or more languages
type Story struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Languages []Language `json:"languages"`
	Formats   []Format   `json:"formats"`
}

// Language holds the per-format contents of a story in one language
type Language struct {
	ID       int64     `json:"id"`
	Code     string    `json:"code"`
	StoryID  int64     `json:"-"`
	Contents []Content `json:"contents"`
}

// Format is a shared content kind such as "text" or "audio"
type Format struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Content joins one language and one format. For audio it holds a media path.
type Content struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	LanguageID int64  `json:"language_id"`
	FormatID   int64  `json:"format_id"`
}

// Language returns the story's language with the given code, or nil.
func (s *Story) Language(code string) *Language {
	for i := range s.Languages {
		if s.Languages[i].Code == code {
			return &s.Languages[i]
		}
	}
	return nil
}

// Format returns the story's format membership with the given type, or nil.
func (s *Story) Format(formatType string) *Format {
	for i := range s.Formats {
		if s.Formats[i].Type == formatType {
			return &s.Formats[i]
		}
	}
	return nil
}

// ContentFor returns the language's content for a format, or nil.
func (l *Language) ContentFor(formatID int64) *Content {
	for i := range l.Contents {
		if l.Contents[i].FormatID == formatID {
			return &l.Contents[i]
		}
	}
	return nil
}
