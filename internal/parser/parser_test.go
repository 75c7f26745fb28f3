package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sample = `---
headline: Haushalt beschlossen
category: Politik / Bund
publication: Tagesblatt
publication_url: https://tagesblatt.example
item_type: Meldung
publish_at: 2025-04-03 10:15
refs:
  - kind: website
    url: https://bundestag.example/haushalt
  - kind: abbreviation
    text: Bundesministerium der Finanzen
  - kind: item-link
    link: 2025/04/vorher.md
---
<p>Der <span class="marker">Bundestag</span> hat das <span class="marker">BMF</span>-Budget beschlossen.</p>
`

func TestParse_Document(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := &Document{
		Headline:       "Haushalt beschlossen",
		Category:       "Politik / Bund",
		Publication:    "Tagesblatt",
		PublicationURL: "https://tagesblatt.example",
		ItemType:       "Meldung",
		PublishAt:      "2025-04-03 10:15",
		Refs: []Ref{
			{Kind: "website", URL: "https://bundestag.example/haushalt"},
			{Kind: "abbreviation", Text: "Bundesministerium der Finanzen"},
			{Kind: "item-link", Link: "2025/04/vorher.md"},
		},
		Summary: `<p>Der <span class="marker">Bundestag</span> hat das <span class="marker">BMF</span>-Budget beschlossen.</p>`,
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"Politik", "Bund"}, doc.CategoryPath()); diff != "" {
		t.Errorf("CategoryPath() mismatch (-want +got):\n%s", diff)
	}

	cest := time.FixedZone("CEST", 2*60*60)
	at, err := doc.PublishTime(cest)
	if err != nil {
		t.Fatalf("PublishTime: %v", err)
	}
	if !at.Equal(time.Date(2025, time.April, 3, 10, 15, 0, 0, cest)) {
		t.Errorf("PublishTime = %v", at)
	}
}

func TestPublishTime_Layouts(t *testing.T) {
	cases := map[string]time.Time{
		"2025-04-03T08:00:00Z": time.Date(2025, time.April, 3, 8, 0, 0, 0, time.UTC),
		"2025-04-03 08:00":     time.Date(2025, time.April, 3, 8, 0, 0, 0, time.UTC),
		"2025-04-03":           time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		d := Document{PublishAt: in}
		got, err := d.PublishTime(time.UTC)
		if err != nil {
			t.Errorf("PublishTime(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("PublishTime(%q) = %v, want %v", in, got, want)
		}
	}

	empty := Document{}
	if got, err := empty.PublishTime(time.UTC); err != nil || !got.IsZero() {
		t.Errorf("empty PublishTime = %v, %v", got, err)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	for _, in := range []string{"<p>just html</p>", "---\nheadline: x\n"} {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrNoFrontmatter) {
			t.Errorf("Parse(%q) err = %v, want ErrNoFrontmatter", in, err)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing headline":  "---\ncategory: A\npublication: P\nitem_type: T\n---\n",
		"empty segment":     "---\nheadline: h\ncategory: A//B\npublication: P\nitem_type: T\n---\n",
		"unknown kind":      "---\nheadline: h\ncategory: A\npublication: P\nitem_type: T\nrefs:\n  - kind: podcast\n---\n",
		"abbr without text": "---\nheadline: h\ncategory: A\npublication: P\nitem_type: T\nrefs:\n  - kind: abbreviation\n---\n",
		"bad publish_at":    "---\nheadline: h\ncategory: A\npublication: P\nitem_type: T\npublish_at: gestern\n---\n",
		"unknown field":     "---\nheadline: h\ncategory: A\npublication: P\nitem_type: T\nauthor: x\n---\n",
		"broken yaml":       "---\n: : {{\n---\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\nheadline: Haushalt beschlossen\n") {
		t.Errorf("unexpected encoding:\n%s", data)
	}
	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Encode()): %v", err)
	}
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
