// Package storytest provides an in-memory story.Transactor for tests.
package storytest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonathan/story-manager/internal/story"
)

// Memory is an in-memory story.Transactor. It enforces the same uniqueness
// and restrict constraints as the SQL schema and discards every change made
// by a failed unit of work.
type Memory struct {
	mu    sync.Mutex
	state *memState
	// FailOn names a Tx method that should return ErrInjected.
	FailOn string
	// MissOn names a Find method that reports no row even when one exists,
	// as if another unit of work inserted it after the read.
	MissOn string
}

// ErrInjected is returned by the Tx method named in Memory.FailOn.
var ErrInjected = errors.New("injected failure")

type memState struct {
	nextID      int64
	stories     map[int64]string
	languages   map[int64]story.Language
	formats     map[int64]string
	contents    map[int64]story.Content
	memberships map[[2]int64]bool
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{state: &memState{
		stories:     map[int64]string{},
		languages:   map[int64]story.Language{},
		formats:     map[int64]string{},
		contents:    map[int64]story.Content{},
		memberships: map[[2]int64]bool{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:      s.nextID,
		stories:     make(map[int64]string, len(s.stories)),
		languages:   make(map[int64]story.Language, len(s.languages)),
		formats:     make(map[int64]string, len(s.formats)),
		contents:    make(map[int64]story.Content, len(s.contents)),
		memberships: make(map[[2]int64]bool, len(s.memberships)),
	}
	for k, v := range s.stories {
		c.stories[k] = v
	}
	for k, v := range s.languages {
		c.languages[k] = v
	}
	for k, v := range s.formats {
		c.formats[k] = v
	}
	for k, v := range s.contents {
		c.contents[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	return c
}

// WithTx runs fn against a snapshot and commits it when fn succeeds. Units
// of work are serialized.
func (m *Memory) WithTx(_ context.Context, fn func(tx story.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := &memTx{db: m, s: m.state.clone()}
	if err := fn(work); err != nil {
		return err
	}
	m.state = work.s
	return nil
}

type memTx struct {
	db *Memory
	s  *memState
}

func (t *memTx) fail(op string) error {
	if t.db.FailOn == op {
		return ErrInjected
	}
	return nil
}

func (t *memTx) id() int64 {
	t.s.nextID++
	return t.s.nextID
}

func (t *memTx) InsertStory(_ context.Context, title string) (int64, error) {
	if err := t.fail("InsertStory"); err != nil {
		return 0, err
	}
	id := t.id()
	t.s.stories[id] = title
	return id, nil
}

func (t *memTx) LockStory(_ context.Context, storyID int64) (bool, error) {
	_, ok := t.s.stories[storyID]
	return ok, nil
}

func (t *memTx) UpdateStoryTitle(_ context.Context, storyID int64, title string) error {
	if err := t.fail("UpdateStoryTitle"); err != nil {
		return err
	}
	t.s.stories[storyID] = title
	return nil
}

func (t *memTx) DeleteStoryRow(_ context.Context, storyID int64) error {
	for _, l := range t.s.languages {
		if l.StoryID == storyID {
			return fmt.Errorf("restrict: story %d still has languages", storyID)
		}
	}
	for k := range t.s.memberships {
		if k[0] == storyID {
			return fmt.Errorf("restrict: story %d still has format links", storyID)
		}
	}
	delete(t.s.stories, storyID)
	return nil
}

func (t *memTx) ResolveFormat(_ context.Context, formatType string) (story.Format, bool, error) {
	if err := t.fail("ResolveFormat"); err != nil {
		return story.Format{}, false, err
	}
	for id, typ := range t.s.formats {
		if typ == formatType {
			return story.Format{ID: id, Type: typ}, false, nil
		}
	}
	id := t.id()
	t.s.formats[id] = formatType
	return story.Format{ID: id, Type: formatType}, true, nil
}

func (t *memTx) LinkFormat(_ context.Context, storyID, formatID int64) error {
	if err := t.fail("LinkFormat"); err != nil {
		return err
	}
	t.s.memberships[[2]int64{storyID, formatID}] = true
	return nil
}

func (t *memTx) UnlinkFormats(_ context.Context, storyID int64) error {
	for k := range t.s.memberships {
		if k[0] == storyID {
			delete(t.s.memberships, k)
		}
	}
	return nil
}

func (t *memTx) ListFormats(_ context.Context) ([]story.Format, error) {
	var out []story.Format
	for id, typ := range t.s.formats {
		out = append(out, story.Format{ID: id, Type: typ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) FindLanguage(_ context.Context, storyID int64, code string) (*story.Language, error) {
	if t.db.MissOn == "FindLanguage" {
		return nil, nil
	}
	for _, l := range t.s.languages {
		if l.StoryID == storyID && l.Code == code {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) languageIDs(storyID int64) []int64 {
	var ids []int64
	for id, l := range t.s.languages {
		if l.StoryID == storyID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *memTx) InsertLanguage(_ context.Context, storyID int64, code string) (int64, error) {
	if err := t.fail("InsertLanguage"); err != nil {
		return 0, err
	}
	for _, l := range t.s.languages {
		if l.StoryID == storyID && l.Code == code {
			return 0, fmt.Errorf("languages_story_id_code_key: %w", story.ErrDuplicate)
		}
	}
	id := t.id()
	t.s.languages[id] = story.Language{ID: id, Code: code, StoryID: storyID}
	return id, nil
}

func (t *memTx) DeleteLanguageRow(_ context.Context, languageID int64) error {
	for _, c := range t.s.contents {
		if c.LanguageID == languageID {
			return fmt.Errorf("restrict: language %d still has contents", languageID)
		}
	}
	delete(t.s.languages, languageID)
	return nil
}

func (t *memTx) FindContent(_ context.Context, languageID, formatID int64) (*story.Content, error) {
	if t.db.MissOn == "FindContent" {
		return nil, nil
	}
	for _, c := range t.s.contents {
		if c.LanguageID == languageID && c.FormatID == formatID {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertContent(_ context.Context, languageID, formatID int64, content string) (int64, error) {
	if err := t.fail("InsertContent"); err != nil {
		return 0, err
	}
	if _, ok := t.s.languages[languageID]; !ok {
		return 0, fmt.Errorf("foreign key: language %d", languageID)
	}
	for _, c := range t.s.contents {
		if c.LanguageID == languageID && c.FormatID == formatID {
			return 0, fmt.Errorf("contents_language_id_format_id_key: %w", story.ErrDuplicate)
		}
	}
	id := t.id()
	t.s.contents[id] = story.Content{ID: id, Content: content, LanguageID: languageID, FormatID: formatID}
	return id, nil
}

func (t *memTx) DeleteContentRow(_ context.Context, contentID int64) error {
	delete(t.s.contents, contentID)
	return nil
}

func (t *memTx) DeleteLanguageContents(_ context.Context, languageID int64) error {
	for id, c := range t.s.contents {
		if c.LanguageID == languageID {
			delete(t.s.contents, id)
		}
	}
	return nil
}

func (t *memTx) CountContents(_ context.Context, languageID int64) (int, error) {
	n := 0
	for _, c := range t.s.contents {
		if c.LanguageID == languageID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) LoadStory(_ context.Context, storyID int64) (*story.Story, error) {
	title, ok := t.s.stories[storyID]
	if !ok {
		return nil, nil
	}
	st := story.Story{ID: storyID, Title: title, Languages: []story.Language{}, Formats: []story.Format{}}

	for _, id := range t.languageIDs(storyID) {
		l := t.s.languages[id]
		l.Contents = []story.Content{}
		for _, c := range t.s.contents {
			if c.LanguageID == id {
				l.Contents = append(l.Contents, c)
			}
		}
		sort.Slice(l.Contents, func(i, j int) bool { return l.Contents[i].ID < l.Contents[j].ID })
		st.Languages = append(st.Languages, l)
	}
	for k := range t.s.memberships {
		if k[0] == storyID {
			st.Formats = append(st.Formats, story.Format{ID: k[1], Type: t.s.formats[k[1]]})
		}
	}
	sort.Slice(st.Formats, func(i, j int) bool { return st.Formats[i].ID < st.Formats[j].ID })
	return &st, nil
}

func (t *memTx) LoadStories(ctx context.Context) ([]story.Story, error) {
	var ids []int64
	for id := range t.s.stories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]story.Story, 0, len(ids))
	for _, id := range ids {
		st, _ := t.LoadStory(ctx, id)
		out = append(out, *st)
	}
	return out, nil
}

// ContentCount returns the committed number of content rows.
func (m *Memory) ContentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.contents)
}

// FormatsOfType returns the committed number of formats with the given type.
func (m *Memory) FormatsOfType(formatType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, typ := range m.state.formats {
		if typ == formatType {
			n++
		}
	}
	return n
}
