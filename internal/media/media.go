// Package media stores the files that file references point to.
//
// Files live flat in one directory and are served under a URL prefix.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/ticker/internal/apperr"
)

// MaxSize is the largest accepted file.
const MaxSize = 20 << 20

var (
	allowedExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".webp": true, ".svg": true, ".pdf": true,
	}

	mimeToExt = map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"image/svg+xml":   ".svg",
		"application/pdf": ".pdf",
	}

	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Saved describes a stored file.
type Saved struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Store is a flat directory of uploaded files.
type Store struct {
	root   string
	prefix string
}

// NewStore creates the directory if needed. prefix is the public URL path
// files are served under, e.g. /media.
func NewStore(root, prefix string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("media: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("media: create root: %w", err)
	}
	return &Store{root: abs, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// Root returns the absolute media directory.
func (s *Store) Root() string { return s.root }

// URL returns the public URL of name.
func (s *Store) URL(name string) string { return s.prefix + "/" + name }

// Path returns the absolute path of a stored file name. Names with path
// separators or traversal are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("media: filename is required: %w", apperr.ErrInvalidInput)
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("media: invalid filename %q: %w", name, apperr.ErrInvalidInput)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Save validates data against the extension of name and writes it.
// An existing file with the same name is never overwritten.
func (s *Store) Save(name string, data []byte) (*Saved, error) {
	if len(data) > MaxSize {
		return nil, fmt.Errorf("media: file too large: %d bytes (max %d): %w", len(data), MaxSize, apperr.ErrInvalidInput)
	}
	name = Sanitize(name)
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("media: unsupported extension %q: %w", ext, apperr.ErrInvalidInput)
	}
	if err := checkContent(data, ext); err != nil {
		return nil, fmt.Errorf("media: %s: %w", err.Error(), apperr.ErrInvalidInput)
	}

	abs, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("media: %s: %w", name, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("media: create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(abs)
		return nil, fmt.Errorf("media: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("media: close %s: %w", name, err)
	}
	return &Saved{Name: name, Size: int64(len(data)), URL: s.URL(name)}, nil
}

// ExtForMIME returns the file extension for an accepted MIME type.
func ExtForMIME(mime string) string {
	return mimeToExt[strings.TrimSpace(strings.Split(mime, ";")[0])]
}

// Sanitize strips directories and unsafe characters from name. An empty
// result becomes a random name.
func Sanitize(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = uuid.NewString()
	}
	return name
}

func checkContent(data []byte, ext string) error {
	if ext == ".svg" {
		head := data
		if len(head) > 1024 {
			head = head[:1024]
		}
		if !bytes.Contains(head, []byte("<svg")) {
			return errors.New("content is not an SVG image")
		}
		return nil
	}

	detected := http.DetectContentType(data)
	got := ExtForMIME(detected)
	want := ext
	if want == ".jpeg" {
		want = ".jpg"
	}
	if got != want {
		return fmt.Errorf("content does not match extension %s (detected %s)", ext, detected)
	}
	return nil
}
