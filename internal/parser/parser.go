// Package parser decodes feed source documents: a YAML frontmatter block
// describing one ticker item, followed by its HTML summary.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/ticker/internal/checksum"
	"github.com/starford/ticker/internal/models"
)

// ErrNoFrontmatter is returned for documents without a leading --- block.
var ErrNoFrontmatter = errors.New("parser: missing frontmatter")

// publishLayouts are tried in order; the last two are read in the feed zone.
var publishLayouts = []string{time.RFC3339, "2006-01-02 15:04", time.DateOnly}

// Ref is one reference entry of a document.
type Ref struct {
	Kind  string `yaml:"kind"`
	Index int    `yaml:"index,omitempty"`
	URL   string `yaml:"url,omitempty"`
	// File is an upload path relative to the media directory.
	File string `yaml:"file,omitempty"`
	// Link is the source path of the linked item's document.
	Link  string `yaml:"link,omitempty"`
	Text  string `yaml:"text,omitempty"`
	Title string `yaml:"title,omitempty"`
}

// Validate checks the reference entry.
func (r Ref) Validate() error {
	kinds := make([]interface{}, len(models.Kinds))
	for i, k := range models.Kinds {
		kinds[i] = string(k)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(kinds...)),
		validation.Field(&r.Index, validation.Min(0)),
		validation.Field(&r.Link, validation.When(r.Kind == string(models.KindItemLink) && r.URL == "" && r.File == "", validation.Required)),
		validation.Field(&r.Text, validation.When(r.Kind == string(models.KindAbbreviation), validation.Required)),
	)
}

// Document is a decoded feed source document.
type Document struct {
	Headline       string `yaml:"headline"`
	Category       string `yaml:"category"`
	Publication    string `yaml:"publication"`
	PublicationURL string `yaml:"publication_url,omitempty"`
	ItemType       string `yaml:"item_type"`
	ItemTypeColor  string `yaml:"item_type_color,omitempty"`
	PublishAt      string `yaml:"publish_at,omitempty"`
	Refs           []Ref  `yaml:"refs,omitempty"`

	Summary string `yaml:"-"`
}

// Validate checks the document's required fields and references.
func (d Document) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Headline, validation.Required, validation.Length(1, 500)),
		validation.Field(&d.Category, validation.Required, validation.By(validCategory)),
		validation.Field(&d.Publication, validation.Required),
		validation.Field(&d.ItemType, validation.Required),
		validation.Field(&d.PublishAt, validation.By(validPublishAt)),
		validation.Field(&d.Refs),
	)
}

func validCategory(v interface{}) error {
	s, _ := v.(string)
	for _, seg := range strings.Split(s, "/") {
		if strings.TrimSpace(seg) == "" {
			return errors.New("must not contain empty segments")
		}
	}
	return nil
}

func validPublishAt(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := parseTime(s, time.UTC); err != nil {
		return errors.New("must be RFC 3339, \"YYYY-MM-DD HH:MM\" or a date")
	}
	return nil
}

// CategoryPath returns the category names from the root down.
func (d *Document) CategoryPath() []string {
	parts := strings.Split(d.Category, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PublishTime parses PublishAt, reading zone-less values in loc. An empty
// PublishAt yields the zero time.
func (d *Document) PublishTime(loc *time.Location) (time.Time, error) {
	if d.PublishAt == "" {
		return time.Time{}, nil
	}
	return parseTime(d.PublishAt, loc)
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	var firstErr error
	for _, layout := range publishLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Parse decodes and validates a source document.
func Parse(data []byte) (*Document, error) {
	block, body, err := splitFrontmatter(checksum.Normalize(data))
	if err != nil {
		return nil, err
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(block))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parser: frontmatter: %w", err)
	}
	doc.Summary = strings.TrimSpace(body)

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	return &doc, nil
}

// Encode renders doc back into source form.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("parser: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode: %w", err)
	}
	buf.WriteString("---\n")
	if doc.Summary != "" {
		buf.WriteString(doc.Summary)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates the YAML block between the leading ---
// delimiters from the body.
func splitFrontmatter(data []byte) ([]byte, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", ErrNoFrontmatter
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", ErrNoFrontmatter
	}

	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	return block, strings.TrimLeft(string(after), "\n\r"), nil
}
