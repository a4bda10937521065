package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/media"
	"github.com/jonathan/story-manager/internal/schemas"
	"github.com/jonathan/story-manager/internal/story"
	"github.com/jonathan/story-manager/internal/story/storytest"
	"github.com/jonathan/story-manager/internal/types"
)

// testServer bundles a server wired to in-memory stores
type testServer struct {
	*Server
	handler      http.Handler
	memory       *storytest.Memory
	dialogStore  *mockDialogs
	profileStore *mockProfiles
	mediaStore   *media.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, Config{
		APIPrefix:          "/api",
		ProjectName:        "Story Manager API",
		Version:            "1.0.0",
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	})
}

func newTestServerWithConfig(t *testing.T, cfg Config) *testServer {
	t.Helper()

	memory := storytest.NewMemory()
	store, err := media.NewStore(t.TempDir())
	require.NoError(t, err)

	ts := &testServer{
		memory:       memory,
		dialogStore:  newMockDialogs(),
		profileStore: newMockProfiles(),
		mediaStore:   store,
	}
	ts.Server = New(cfg, Deps{
		Stories:  story.NewStore(memory, nil),
		Dialogs:  ts.dialogStore,
		Profiles: ts.profileStore,
		Media:    store,
	})
	ts.handler = ts.Handler()
	return ts
}

// do sends a request through the full middleware chain
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

// upload sends a multipart form with an optional file
func (ts *testServer) upload(t *testing.T, path string, fields map[string]string, fileField, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireSchema(t *testing.T, name string, w *httptest.ResponseRecorder) {
	t.Helper()
	require.NoError(t, schemas.Validate(name, w.Body.Bytes()), w.Body.String())
}

func requireListSchema(t *testing.T, name string, w *httptest.ResponseRecorder) {
	t.Helper()
	require.NoError(t, schemas.ValidateList(name, w.Body.Bytes()), w.Body.String())
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int) string {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	requireSchema(t, schemas.Error, w)
	return decode[map[string]string](t, w)["error"]
}

// -----------------------------------------------------------------------------
// Dialog store fake
// -----------------------------------------------------------------------------

type mockDialogs struct {
	mu      sync.Mutex
	nextID  int64
	openers map[int64]*db.Opener
	err     error
}

func newMockDialogs() *mockDialogs {
	return &mockDialogs{openers: map[int64]*db.Opener{}}
}

func (m *mockDialogs) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockDialogs) ListOpeners(_ context.Context) ([]db.Opener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []db.Opener{}
	for _, o := range m.openers {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDialogs) GetOpener(_ context.Context, id int64) (*db.Opener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.openers[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockDialogs) CreateOpener(_ context.Context, req *types.CreateOpenerRequest) (*db.Opener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &db.Opener{ID: m.id(), Text: req.Text, Context: req.Context, ContinueOptions: []db.ContinueOption{}}
	m.openers[o.ID] = o
	cp := *o
	return &cp, nil
}

func (m *mockDialogs) UpdateOpener(_ context.Context, id int64, req *types.UpdateOpenerRequest) (*db.Opener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.openers[id]
	if !ok {
		return nil, types.NewNotFound("Opener", id)
	}
	if req.Text != nil {
		o.Text = *req.Text
	}
	if req.Context != nil {
		o.Context = *req.Context
	}
	cp := *o
	return &cp, nil
}

func (m *mockDialogs) DeleteOpener(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.openers[id]; !ok {
		return types.NewNotFound("Opener", id)
	}
	delete(m.openers, id)
	return nil
}

func (m *mockDialogs) AddOption(_ context.Context, openerID int64, req *types.CreateOptionRequest) (*db.ContinueOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.openers[openerID]
	if !ok {
		return nil, types.NewNotFound("Opener", openerID)
	}
	opt := db.ContinueOption{ID: m.id(), Text: req.Text, Weight: req.WeightOrDefault(), OpenerID: openerID}
	o.ContinueOptions = append(o.ContinueOptions, opt)
	return &opt, nil
}

func (m *mockDialogs) UpdateOption(_ context.Context, openerID, optionID int64, req *types.UpdateOptionRequest) (*db.ContinueOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.openers[openerID]; ok {
		for i := range o.ContinueOptions {
			opt := &o.ContinueOptions[i]
			if opt.ID != optionID {
				continue
			}
			if req.Text != nil {
				opt.Text = *req.Text
			}
			if req.Weight != nil {
				opt.Weight = *req.Weight
			}
			cp := *opt
			return &cp, nil
		}
	}
	return nil, types.NewNotFound("Continue option", optionID)
}

func (m *mockDialogs) DeleteOption(_ context.Context, openerID, optionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.openers[openerID]; ok {
		for i, opt := range o.ContinueOptions {
			if opt.ID == optionID {
				o.ContinueOptions = append(o.ContinueOptions[:i], o.ContinueOptions[i+1:]...)
				return nil
			}
		}
	}
	return types.NewNotFound("Continue option", optionID)
}

// -----------------------------------------------------------------------------
// Profile store fake
// -----------------------------------------------------------------------------

type mockProfiles struct {
	mu       sync.Mutex
	nextID   int64
	profiles map[int64]*db.Profile
	progress map[int64]*db.Progress
}

func newMockProfiles() *mockProfiles {
	return &mockProfiles{profiles: map[int64]*db.Profile{}, progress: map[int64]*db.Progress{}}
}

func (m *mockProfiles) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockProfiles) copyOf(p *db.Profile) *db.Profile {
	cp := *p
	cp.Hobbies = append([]db.Hobby{}, p.Hobbies...)
	cp.Notes = append([]db.Note{}, p.Notes...)
	return &cp
}

func (m *mockProfiles) ListProfiles(_ context.Context) ([]db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []db.Profile{}
	for _, p := range m.profiles {
		out = append(out, *m.copyOf(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockProfiles) GetProfile(_ context.Context, id int64) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return m.copyOf(p), nil
}

func (m *mockProfiles) CreateProfile(_ context.Context, req *types.CreateProfileRequest) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &db.Profile{
		ID:          m.id(),
		Name:        req.Name,
		Age:         *req.Age,
		Source:      req.Source,
		TelegramTag: req.TelegramTag,
		Hobbies:     []db.Hobby{},
		Notes:       []db.Note{},
	}
	if req.BirthDate != nil && !req.BirthDate.IsZero() {
		p.BirthDate = req.BirthDate
	}
	m.profiles[p.ID] = p
	return m.copyOf(p), nil
}

func (m *mockProfiles) UpdateProfile(_ context.Context, id int64, req *types.UpdateProfileRequest) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, types.NewNotFound("Profile", id)
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Age != nil {
		p.Age = *req.Age
	}
	if req.Source != nil {
		p.Source = *req.Source
	}
	return m.copyOf(p), nil
}

func (m *mockProfiles) SetAvatar(_ context.Context, id int64, path string) (*db.Profile, *string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil, types.NewNotFound("Profile", id)
	}
	previous := p.AvatarPath
	p.AvatarPath = &path
	return m.copyOf(p), previous, nil
}

func (m *mockProfiles) DeleteProfile(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return types.NewNotFound("Profile", id)
	}
	delete(m.profiles, id)
	return nil
}

func (m *mockProfiles) AddHobby(_ context.Context, profileID int64, req *types.HobbyRequest) (*db.Hobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return nil, types.NewNotFound("Profile", profileID)
	}
	h := db.Hobby{ID: m.id(), Name: req.Name, ProfileID: profileID}
	p.Hobbies = append(p.Hobbies, h)
	return &h, nil
}

func (m *mockProfiles) DeleteHobby(_ context.Context, profileID, hobbyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[profileID]; ok {
		for i, h := range p.Hobbies {
			if h.ID == hobbyID {
				p.Hobbies = append(p.Hobbies[:i], p.Hobbies[i+1:]...)
				return nil
			}
		}
	}
	return types.NewNotFound("Hobby", hobbyID)
}

func (m *mockProfiles) AddNote(_ context.Context, profileID int64, req *types.NoteRequest) (*db.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return nil, types.NewNotFound("Profile", profileID)
	}
	n := db.Note{ID: m.id(), Key: req.Key, Value: req.Value, ProfileID: profileID}
	p.Notes = append(p.Notes, n)
	return &n, nil
}

func (m *mockProfiles) UpdateNote(_ context.Context, profileID, noteID int64, req *types.NoteRequest) (*db.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[profileID]; ok {
		for i := range p.Notes {
			if p.Notes[i].ID == noteID {
				p.Notes[i].Key = req.Key
				p.Notes[i].Value = req.Value
				cp := p.Notes[i]
				return &cp, nil
			}
		}
	}
	return nil, types.NewNotFound("Note", noteID)
}

func (m *mockProfiles) DeleteNote(_ context.Context, profileID, noteID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[profileID]; ok {
		for i, n := range p.Notes {
			if n.ID == noteID {
				p.Notes = append(p.Notes[:i], p.Notes[i+1:]...)
				return nil
			}
		}
	}
	return types.NewNotFound("Note", noteID)
}

func (m *mockProfiles) ListProgress(_ context.Context, profileID int64) ([]db.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profileID]; !ok {
		return nil, types.NewNotFound("Profile", profileID)
	}
	out := []db.Progress{}
	for _, pr := range m.progress {
		if pr.ProfileID == profileID {
			out = append(out, *pr)
		}
	}
	return out, nil
}

func (m *mockProfiles) UpsertProgress(_ context.Context, profileID int64, req *types.ProgressRequest) (*db.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profileID]; !ok {
		return nil, types.NewNotFound("Profile", profileID)
	}
	for _, pr := range m.progress {
		if pr.ProfileID == profileID && equalID(pr.StoryID, req.StoryID) && equalID(pr.OpenerID, req.OpenerID) {
			pr.Checkpoint = req.Checkpoint
			pr.UpdatedAt = time.Now().UTC()
			cp := *pr
			return &cp, nil
		}
	}
	pr := &db.Progress{
		ID:         m.id(),
		ProfileID:  profileID,
		StoryID:    req.StoryID,
		OpenerID:   req.OpenerID,
		Checkpoint: req.Checkpoint,
		UpdatedAt:  time.Now().UTC(),
	}
	m.progress[pr.ID] = pr
	cp := *pr
	return &cp, nil
}

func (m *mockProfiles) DeleteProgress(_ context.Context, profileID, progressID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.progress[progressID]
	if !ok || pr.ProfileID != profileID {
		return types.NewNotFound("Progress", progressID)
	}
	delete(m.progress, progressID)
	return nil
}

func equalID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// failingPinger reports an unreachable backend
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }
