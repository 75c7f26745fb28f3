// Package shortlink issues the short codes of share links and records
// their clicks.
package shortlink

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

// Alphabet is the code character set: digits, lower and upper case.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	DefaultCodeLength  = 8
	DefaultMaxAttempts = 10

	clickTimeLayout = "2006-01-02 15:04:05"
)

// Store is the share-link persistence. InsertShareLink must fail with
// apperr.ErrAlreadyExists when the code is taken.
type Store interface {
	InsertShareLink(ctx context.Context, l *models.ShareLink) error
	GetShareLink(ctx context.Context, code string) (*models.ShareLink, error)
	AppendClick(ctx context.Context, id int64, line string) error
}

// Issuer creates share links and records clicks on them.
type Issuer struct {
	store       Store
	codeLength  int
	maxAttempts int
	rand        io.Reader
	now         func() time.Time
	loc         *time.Location
	logger      *slog.Logger
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithCodeLength sets the number of characters per code.
func WithCodeLength(n int) Option {
	return func(i *Issuer) {
		if n > 0 {
			i.codeLength = n
		}
	}
}

// WithMaxAttempts bounds the number of codes tried per Issue call.
func WithMaxAttempts(n int) Option {
	return func(i *Issuer) {
		if n > 0 {
			i.maxAttempts = n
		}
	}
}

// WithRand replaces the random source.
func WithRand(r io.Reader) Option {
	return func(i *Issuer) { i.rand = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithLocation sets the zone click timestamps are written in.
func WithLocation(loc *time.Location) Option {
	return func(i *Issuer) { i.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Issuer) { i.logger = l }
}

// NewIssuer creates an Issuer.
func NewIssuer(store Store, opts ...Option) *Issuer {
	i := &Issuer{
		store:       store,
		codeLength:  DefaultCodeLength,
		maxAttempts: DefaultMaxAttempts,
		rand:        rand.Reader,
		now:         time.Now,
		loc:         time.Local,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Issue creates a share link for the window of windowDays days ending at
// anchorDate, valid until validUntil. Taken codes are retried up to the
// attempt bound, after which apperr.ErrCodeSpaceExhausted is returned.
// The anchor is kept as its calendar date in the issuer's zone.
func (i *Issuer) Issue(ctx context.Context, anchorDate time.Time, windowDays int, validUntil time.Time) (*models.ShareLink, error) {
	if windowDays < 0 {
		return nil, fmt.Errorf("shortlink: negative window %d", windowDays)
	}
	anchorDate = calendarDate(anchorDate, i.loc)

	var (
		link     *models.ShareLink
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			code, err := i.newCode()
			if err != nil {
				return retry.Unrecoverable(err)
			}
			l := &models.ShareLink{
				Code:       code,
				ValidUntil: validUntil,
				AnchorDate: anchorDate,
				WindowDays: windowDays,
				CreatedAt:  i.now(),
			}
			if err := i.store.InsertShareLink(ctx, l); err != nil {
				return err
			}
			link = l
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(i.maxAttempts)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, apperr.ErrAlreadyExists)
		}),
	)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			i.logger.Error("shortlink: code space exhausted",
				slog.Int("attempts", attempts),
				slog.Int("code_length", i.codeLength))
			return nil, fmt.Errorf("shortlink: %d attempts: %w", attempts, apperr.ErrCodeSpaceExhausted)
		}
		return nil, fmt.Errorf("shortlink: issue: %w", err)
	}
	if attempts > 1 {
		i.logger.Warn("shortlink: code collisions", slog.Int("attempts", attempts))
	}
	return link, nil
}

// newCode draws codeLength characters uniformly from Alphabet.
func (i *Issuer) newCode() (string, error) {
	const limit = 256 - 256%len(Alphabet)
	var (
		sb  strings.Builder
		buf [1]byte
	)
	sb.Grow(i.codeLength)
	for sb.Len() < i.codeLength {
		if _, err := io.ReadFull(i.rand, buf[:]); err != nil {
			return "", fmt.Errorf("shortlink: read random: %w", err)
		}
		if int(buf[0]) >= limit {
			continue
		}
		sb.WriteByte(Alphabet[int(buf[0])%len(Alphabet)])
	}
	return sb.String(), nil
}

// calendarDate is t's day in loc as UTC midnight, so that storing it
// keeps the date.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}

// Lookup returns the link with code. Expired links yield
// apperr.ErrLinkExpired together with the link.
func (i *Issuer) Lookup(ctx context.Context, code string) (*models.ShareLink, error) {
	l, err := i.store.GetShareLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if !l.Valid(i.now()) {
		return l, fmt.Errorf("shortlink: %s: %w", code, apperr.ErrLinkExpired)
	}
	return l, nil
}

// RecordClick appends "<local time>;<actor>;<user agent>;<params>" to the
// link's click log and increments its counter in one atomic update.
func (i *Issuer) RecordClick(ctx context.Context, l *models.ShareLink, actorID, userAgent, params string) error {
	line := ClickLine(i.now().In(i.loc), actorID, userAgent, params)
	if err := i.store.AppendClick(ctx, l.ID, line); err != nil {
		return err
	}
	l.ClickCount++
	l.ClickLog += line
	return nil
}

// ClickLine formats one click log entry.
func ClickLine(at time.Time, actorID, userAgent, params string) string {
	return strings.Join([]string{
		at.Format(clickTimeLayout),
		clean(actorID),
		clean(userAgent),
		clean(params),
	}, ";") + "\n"
}

// clean keeps a field from breaking the line format.
func clean(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ", ";", ",").Replace(s)
}

// ResolveURL is base with the link's window as query parameters.
func ResolveURL(base string, l *models.ShareLink) string {
	v := url.Values{}
	v.Set("date", l.AnchorDate.Format(time.DateOnly))
	v.Set("days", strconv.Itoa(l.WindowDays))
	return base + "?" + v.Encode()
}

// ShortLinkURL is base with the link's code.
func ShortLinkURL(base string, l *models.ShareLink) string {
	return base + "?" + url.Values{"code": {l.Code}}.Encode()
}
