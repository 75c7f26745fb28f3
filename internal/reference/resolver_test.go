package reference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

type fakeItems map[int64]*models.Item

func (f fakeItems) GetItem(_ context.Context, id int64) (*models.Item, error) {
	if it, ok := f[id]; ok {
		return it, nil
	}
	return nil, apperr.ErrNotFound
}

type failingItems struct{ err error }

func (f failingItems) GetItem(context.Context, int64) (*models.Item, error) { return nil, f.err }

func ptr(v int64) *int64 { return &v }

var berlin = time.FixedZone("CET", 3600)

func newTestResolver() *Resolver {
	items := fakeItems{
		42: {
			ID:        42,
			Headline:  "Haushalt beschlossen",
			PublishAt: time.Date(2025, 4, 2, 23, 30, 0, 0, time.UTC),
		},
	}
	return NewResolver(items, "/newsticker/", "/media/", berlin)
}

func TestResolve_TitleTable(t *testing.T) {
	r := newTestResolver()
	cases := []struct {
		name  string
		ref   models.Reference
		title string
		href  string
		local bool
	}{
		{"website external", models.Reference{Kind: models.KindWebsite, URL: "https://gruene.de"}, "Externer Link", "https://gruene.de", false},
		{"website internal", models.Reference{Kind: models.KindWebsite, URL: "/seite/"}, "Interner Link", "/seite/", true},
		{"pdf external", models.Reference{Kind: models.KindPDF, URL: "http://x.de/a.pdf"}, "Externes PDF", "http://x.de/a.pdf", false},
		{"pdf internal", models.Reference{Kind: models.KindPDF, URL: "/a.pdf"}, "Internes PDF", "/a.pdf", true},
		{"youtube", models.Reference{Kind: models.KindVideo, URL: "https://www.youtube.com/watch?v=1"}, "YouTube-Video", "https://www.youtube.com/watch?v=1", false},
		{"other video", models.Reference{Kind: models.KindVideo, URL: "https://vimeo.com/1"}, "Video-Link", "https://vimeo.com/1", false},
		{"image external", models.Reference{Kind: models.KindImage, URL: "https://img/x.png"}, "Externes Bild", "https://img/x.png", false},
		{"image internal", models.Reference{Kind: models.KindImage, URL: "x.png"}, "Internes Bild", "x.png", true},
		{"upload website", models.Reference{Kind: models.KindWebsite, UploadPath: "newsticker/files/1/a.html"}, "Interner Link", "/media/newsticker/files/1/a.html", true},
		{"upload pdf", models.Reference{Kind: models.KindPDF, UploadPath: "f.pdf"}, "Internes PDF", "/media/f.pdf", true},
		{"upload video", models.Reference{Kind: models.KindVideo, UploadPath: "f.mp4"}, "Internes Video", "/media/f.mp4", true},
		{"upload image", models.Reference{Kind: models.KindImage, UploadPath: "f.png"}, "Internes Bild", "/media/f.png", true},
		{"explicit title", models.Reference{Kind: models.KindWebsite, URL: "https://a", Title: "Beschluss"}, "Beschluss", "https://a", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), &tc.ref, "")
			require.NoError(t, err)
			assert.Equal(t, tc.title, res.Title)
			assert.Equal(t, tc.href, res.Href)
			assert.Equal(t, tc.local, res.Local)
		})
	}
}

func TestResolve_UploadTakesPrecedenceOverURL(t *testing.T) {
	r := newTestResolver()
	ref := models.Reference{Kind: models.KindPDF, URL: "https://ext/a.pdf", UploadPath: "a.pdf"}
	res, err := r.Resolve(context.Background(), &ref, "")
	require.NoError(t, err)
	assert.Equal(t, "/media/a.pdf", res.Href)
	// The title and locality follow the URL, as the title table checks it first.
	assert.Equal(t, "Externes PDF", res.Title)
	assert.False(t, res.Local)
}

func TestResolve_ItemLink(t *testing.T) {
	r := newTestResolver()
	ref := models.Reference{ID: 7, Kind: models.KindItemLink, LinkedItemID: ptr(42)}

	res, err := r.Resolve(context.Background(), &ref, "")
	require.NoError(t, err)
	assert.Equal(t, "/newsticker/?date=2025-04-03&days=0&show_all=1#ti-42", res.Href)
	assert.Equal(t, "News Ticker: Haushalt beschlossen, vom 2025-04-03", res.Title)
	assert.True(t, res.Local)

	res, err = r.Resolve(context.Background(), &ref, "Ab3dE9xY")
	require.NoError(t, err)
	assert.Equal(t, "/newsticker/?code=Ab3dE9xY&date=2025-04-03&days=0&show_all=1#ti-42", res.Href)
}

func TestResolve_DeletedLinkedItemIsUnresolvable(t *testing.T) {
	r := newTestResolver()
	ref := models.Reference{ID: 8, Kind: models.KindItemLink, LinkedItemID: ptr(404)}
	_, err := r.Resolve(context.Background(), &ref, "")
	assert.ErrorIs(t, err, apperr.ErrUnresolvableReference)

	ref.Title = "Archiv"
	res, err := r.Resolve(context.Background(), &ref, "")
	require.NoError(t, err)
	assert.Empty(t, res.Href)
	assert.Equal(t, "Archiv", res.Title)
	assert.False(t, res.Local)
}

func TestResolve_Abbreviation(t *testing.T) {
	r := newTestResolver()

	ref := models.Reference{Kind: models.KindAbbreviation, Text: "Bündnis 90/Die Grünen"}
	res, err := r.Resolve(context.Background(), &ref, "")
	require.NoError(t, err)
	assert.Empty(t, res.Href)
	assert.Empty(t, res.Title)
	assert.True(t, res.Local)

	ref = models.Reference{ID: 3, Kind: models.KindAbbreviation}
	_, err = r.Resolve(context.Background(), &ref, "")
	assert.ErrorIs(t, err, apperr.ErrUnresolvableReference)
}

func TestResolve_EmptyReferenceIsHardError(t *testing.T) {
	r := newTestResolver()
	for _, k := range []models.Kind{models.KindWebsite, models.KindPDF, models.KindVideo, models.KindImage, models.KindItemLink} {
		ref := models.Reference{Kind: k}
		_, err := r.Resolve(context.Background(), &ref, "")
		assert.ErrorIs(t, err, apperr.ErrUnresolvableReference, "kind %s", k)
	}
}

func TestResolve_UnknownKind(t *testing.T) {
	r := newTestResolver()
	ref := models.Reference{Kind: "tickeritem", URL: "https://x"}
	_, err := r.Resolve(context.Background(), &ref, "")
	assert.ErrorIs(t, err, apperr.ErrUnknownKind)
}

func TestResolve_LookupFailurePropagates(t *testing.T) {
	boom := errors.New("db down")
	r := NewResolver(failingItems{err: boom}, "/", "/media", time.UTC)
	ref := models.Reference{Kind: models.KindItemLink, LinkedItemID: ptr(1)}
	_, err := r.Resolve(context.Background(), &ref, "")
	assert.ErrorIs(t, err, boom)
}

func TestMediaURL_JoinsSlashes(t *testing.T) {
	r := NewResolver(fakeItems{}, "/", "/media", time.UTC)
	assert.Equal(t, "/media/a/b.pdf", r.MediaURL("/a/b.pdf"))
	assert.Equal(t, "/media/a/b.pdf", r.MediaURL("a/b.pdf"))
}
