// Package reference resolves item references into link targets and titles.
package reference

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

const externalScheme = "http"

// ItemLookup fetches linked items by ID. A missing item must be reported
// as apperr.ErrNotFound.
type ItemLookup interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
}

// Resolution is the display-ready target of one reference. Href is empty
// when the reference has nothing to link to.
type Resolution struct {
	Href  string
	Title string
	Local bool
}

// Resolver turns references into Resolutions.
type Resolver struct {
	items        ItemLookup
	overviewPath string
	mediaURL     string
	loc          *time.Location
}

// NewResolver creates a Resolver. overviewPath is the feed page linked items
// point to; mediaURL prefixes uploaded file paths.
func NewResolver(items ItemLookup, overviewPath, mediaURL string, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{items: items, overviewPath: overviewPath, mediaURL: mediaURL, loc: loc}
}

// Location returns the time zone used for calendar dates.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve computes href, title and locality of ref. shareCode, if set, is
// carried into overview URLs of linked items.
func (r *Resolver) Resolve(ctx context.Context, ref *models.Reference, shareCode string) (Resolution, error) {
	if !validKind(ref.Kind) {
		return Resolution{}, fmt.Errorf("reference %d: %w: %q", ref.ID, apperr.ErrUnknownKind, ref.Kind)
	}

	linked, err := r.linkedItem(ctx, ref)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Local: isLocal(ref, linked)}
	switch {
	case ref.UploadPath != "":
		res.Href = r.MediaURL(ref.UploadPath)
	case ref.URL != "":
		res.Href = ref.URL
	case linked != nil:
		res.Href = r.OverviewURL(linked, shareCode)
	}

	title, ok := title(ref, linked, r.loc)
	if !ok {
		return Resolution{}, fmt.Errorf("reference %d (%s): %w", ref.ID, ref.Kind, apperr.ErrUnresolvableReference)
	}
	res.Title = title
	return res, nil
}

func (r *Resolver) linkedItem(ctx context.Context, ref *models.Reference) (*models.Item, error) {
	if ref.LinkedItemID == nil {
		return nil, nil
	}
	item, err := r.items.GetItem(ctx, *ref.LinkedItemID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reference %d: load linked item %d: %w", ref.ID, *ref.LinkedItemID, err)
	}
	return item, nil
}

// OverviewURL is the feed page showing only item's day, scrolled to it.
func (r *Resolver) OverviewURL(item *models.Item, shareCode string) string {
	q := url.Values{}
	q.Set("date", item.PublishAt.In(r.loc).Format(time.DateOnly))
	q.Set("days", "0")
	q.Set("show_all", "1")
	if shareCode != "" {
		q.Set("code", shareCode)
	}
	return r.overviewPath + "?" + q.Encode() + "#ti-" + strconv.FormatInt(item.ID, 10)
}

// MediaURL maps an uploaded file path to its public URL.
func (r *Resolver) MediaURL(path string) string {
	return strings.TrimSuffix(r.mediaURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func validKind(k models.Kind) bool {
	switch k {
	case models.KindWebsite, models.KindPDF, models.KindVideo, models.KindImage,
		models.KindItemLink, models.KindAbbreviation:
		return true
	}
	return false
}

func isExternal(u string) bool { return strings.HasPrefix(u, externalScheme) }

func isLocal(ref *models.Reference, linked *models.Item) bool {
	switch {
	case ref.URL != "":
		return !isExternal(ref.URL)
	case ref.UploadPath != "", linked != nil:
		return true
	case ref.Kind == models.KindAbbreviation && ref.Text != "":
		return true
	}
	return false
}

// title applies the title rules in order. ok is false when nothing
// resolves, which callers treat as a hard error.
func title(ref *models.Reference, linked *models.Item, loc *time.Location) (string, bool) {
	if ref.Title != "" {
		return ref.Title, true
	}
	if ref.URL != "" {
		if t, ok := urlTitle(ref.Kind, ref.URL); ok {
			return t, true
		}
	}
	if ref.UploadPath != "" {
		if t, ok := uploadTitle(ref.Kind); ok {
			return t, true
		}
	}
	if linked != nil {
		return fmt.Sprintf("News Ticker: %s, vom %s", linked.Headline, linked.PublishAt.In(loc).Format(time.DateOnly)), true
	}
	if ref.Kind == models.KindAbbreviation && ref.Text != "" {
		return "", true
	}
	return "", false
}

func urlTitle(kind models.Kind, u string) (string, bool) {
	ext := isExternal(u)
	switch kind {
	case models.KindWebsite:
		return pick(ext, "Externer Link", "Interner Link"), true
	case models.KindPDF:
		return pick(ext, "Externes PDF", "Internes PDF"), true
	case models.KindVideo:
		return pick(strings.Contains(u, "youtube"), "YouTube-Video", "Video-Link"), true
	case models.KindImage:
		return pick(ext, "Externes Bild", "Internes Bild"), true
	case models.KindItemLink, models.KindAbbreviation:
		return "", false
	}
	return "", false
}

func uploadTitle(kind models.Kind) (string, bool) {
	switch kind {
	case models.KindWebsite:
		return "Interner Link", true
	case models.KindPDF:
		return "Internes PDF", true
	case models.KindVideo:
		return "Internes Video", true
	case models.KindImage:
		return "Internes Bild", true
	case models.KindItemLink, models.KindAbbreviation:
		return "", false
	}
	return "", false
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
