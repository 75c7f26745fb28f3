package mcpserver

// ItemFormatContract describes the source document format that LLM
// consumers should follow when creating ticker items.
const ItemFormatContract = `# Ticker Item Format Contract

Every ticker item is one source document: a YAML frontmatter block followed
by the item's summary as an HTML fragment.

## Structure

` + "```" + `markdown
---
headline: Haushalt beschlossen        # REQUIRED, at most 500 characters
category: Politik/Bund                # REQUIRED, category path, "/" separates levels
publication: Tagesblatt               # REQUIRED, created on first use
publication_url: https://tagesblatt.example
item_type: Meldung                    # REQUIRED, created on first use
item_type_color: "#c00"
publish_at: 2025-04-03 10:15          # OPTIONAL, RFC 3339, "YYYY-MM-DD HH:MM" or "YYYY-MM-DD"
refs:
  - kind: website
    url: https://bundestag.example/drucksache
  - kind: abbreviation
    text: Bundesministerium der Finanzen
  - kind: item-link
    link: 2025/04/entwurf.md
---
<p>Der <span class="marker">Bundestag</span> hat den Entwurf des
<span class="marker">BMF</span> angenommen
(<span class="marker">^</span>).</p>
` + "```" + `

## Rules

1. **Frontmatter is mandatory** and must start on the first line.
2. **Categories** are created on demand. Siblings are ordered by name.
3. **References** are ordered by ` + "`" + `index` + "`" + `, then by their position in ` + "`" + `refs` + "`" + `.
   Kinds: ` + "`" + `website` + "`" + `, ` + "`" + `pdf` + "`" + `, ` + "`" + `video` + "`" + `, ` + "`" + `image` + "`" + `, ` + "`" + `item-link` + "`" + `, ` + "`" + `abbreviation` + "`" + `.
   - ` + "`" + `url` + "`" + ` links outside; ` + "`" + `file` + "`" + ` names an uploaded media file.
   - ` + "`" + `item-link` + "`" + ` needs ` + "`" + `link` + "`" + `, the source path of another item.
   - ` + "`" + `abbreviation` + "`" + ` needs ` + "`" + `text` + "`" + `, the expansion shown as tooltip.
4. **Markers** are ` + "`" + `<span class="marker">` + "`" + ` elements. The n-th marker in the
   summary is bound to the n-th reference. A marker whose text contains ` + "`" + `^` + "`" + `
   shows only the reference icon.
5. Markers without a reference are left as they are. References without a
   marker stay with the item but are not counted as used in the summary.

## Media

- Upload files via the ` + "`" + `upload_media` + "`" + ` tool. It returns the stored ` + "`" + `name` + "`" + `.
- Reference an upload with ` + "`" + `file: <name>` + "`" + ` and a kind matching the file
  (` + "`" + `pdf` + "`" + `, ` + "`" + `image` + "`" + `).
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.
`
