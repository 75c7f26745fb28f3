package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ticker/internal/apperr"
)

var (
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pdfData = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "media"), "/media/")
	require.NoError(t, err)
	return s
}

func TestSave(t *testing.T) {
	s := newStore(t)

	saved, err := s.Save("haushalt.pdf", pdfData)
	require.NoError(t, err)
	assert.Equal(t, &Saved{Name: "haushalt.pdf", Size: int64(len(pdfData)), URL: "/media/haushalt.pdf"}, saved)

	got, err := os.ReadFile(filepath.Join(s.Root(), "haushalt.pdf"))
	require.NoError(t, err)
	assert.Equal(t, pdfData, got)
}

func TestSave_Sanitizes(t *testing.T) {
	s := newStore(t)

	saved, err := s.Save("../../Plan B (final).png", pngData)
	require.NoError(t, err)
	assert.Equal(t, "Plan_B__final_.png", saved.Name)
	_, err = os.Stat(filepath.Join(s.Root(), saved.Name))
	assert.NoError(t, err)
}

func TestSave_Rejects(t *testing.T) {
	s := newStore(t)

	cases := map[string]struct {
		name string
		data []byte
	}{
		"extension": {"notes.txt", []byte("hello")},
		"mismatch":  {"bild.png", pdfData},
		"svg":       {"logo.svg", []byte("<html></html>")},
		"too large": {"big.pdf", make([]byte, MaxSize+1)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(tc.name, tc.data)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestSave_NoOverwrite(t *testing.T) {
	s := newStore(t)

	_, err := s.Save("a.png", pngData)
	require.NoError(t, err)
	_, err = s.Save("a.png", pngData)
	assert.True(t, errors.Is(err, apperr.ErrAlreadyExists), "got %v", err)
}

func TestPath(t *testing.T) {
	s := newStore(t)

	p, err := s.Path("a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "a.png"), p)

	for _, bad := range []string{"", "../a.png", "sub/a.png", ".hidden"} {
		_, err := s.Path(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, "name %q", bad)
	}
}

func TestExtForMIME(t *testing.T) {
	assert.Equal(t, ".png", ExtForMIME("image/png"))
	assert.Equal(t, ".pdf", ExtForMIME("application/pdf; charset=binary"))
	assert.Equal(t, "", ExtForMIME("text/plain"))
}
