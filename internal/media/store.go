// Package media stores uploaded audio files and avatars on local disk and
// serves them back under a URL prefix.
package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind is a category of uploaded media with its own directory
type Kind string

const (
	KindAudio  Kind = "audio"
	KindAvatar Kind = "avatars"
)

// URLPrefix is the path under which stored files are served
const URLPrefix = "/media/"

// ErrUnsupportedType is returned for uploads whose extension is not allowed
// for their kind.
var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExtensions = map[Kind]map[string]bool{
	KindAudio: {
		".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".aac": true, ".flac": true,
	},
	KindAvatar: {
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	},
}

// Store writes media under a root directory
type Store struct {
	root string
}

// NewStore creates the root directory and one subdirectory per kind
func NewStore(root string) (*Store, error) {
	for kind := range allowedExtensions {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create media dir: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the directory files are written to
func (s *Store) Root() string {
	return s.root
}

// Save copies r into a new file of the given kind and returns the public
// path, e.g. /media/audio/<uuid>.mp3. The client filename only contributes
// its extension.
func (s *Store) Save(kind Kind, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := allowedExtensions[kind]
	if !ok || !allowed[ext] {
		return "", fmt.Errorf("%w: %q for %s", ErrUnsupportedType, ext, kind)
	}

	name := uuid.New().String() + ext
	dst := filepath.Join(s.root, string(kind), name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close media file: %w", err)
	}

	return path.Join(URLPrefix, string(kind), name), nil
}

// IsStored reports whether publicPath has the shape of a path Save returns
// for kind.
func IsStored(kind Kind, publicPath string) bool {
	local := strings.TrimPrefix(publicPath, path.Join(URLPrefix, string(kind))+"/")
	return local != publicPath && local != "" && !strings.Contains(local, "/")
}

// Remove deletes a file previously returned by Save. Paths outside the
// store and files that are already gone are ignored.
func (s *Store) Remove(publicPath string) error {
	local, ok := s.localPath(publicPath)
	if !ok {
		return nil
	}
	if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove media file: %w", err)
	}
	return nil
}

func (s *Store) localPath(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, URLPrefix) {
		return "", false
	}
	rel := path.Clean("/" + strings.TrimPrefix(publicPath, URLPrefix))
	parts := strings.Split(strings.TrimPrefix(rel, "/"), "/")
	if len(parts) != 2 {
		return "", false
	}
	if _, ok := allowedExtensions[Kind(parts[0])]; !ok {
		return "", false
	}
	return filepath.Join(s.root, parts[0], parts[1]), true
}

// Handler serves stored files under URLPrefix. Directory listings are not
// exposed.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(noDirFS{http.Dir(s.root)}))
}

type noDirFS struct {
	fs http.FileSystem
}

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
