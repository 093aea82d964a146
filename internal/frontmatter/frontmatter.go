// Package frontmatter separates the TOML metadata block (between leading +++
// marker lines) from chapter documents.
package frontmatter

import (
	"bytes"
	"strings"

	"github.com/BurntSushi/toml"
)

// Marker is the delimiter line that opens and closes a metadata block.
const Marker = "+++"

// Document is a chapter split into its metadata block and editable body.
type Document struct {
	// Block is the raw text between the marker lines, without the markers.
	Block string
	// Meta is the decoded block; nil when absent or not valid TOML.
	Meta map[string]any
	// Title is the "title" key of Meta, if any.
	Title string
	Body  string
}

// HasFrontMatter reports whether a metadata block was found.
func (d Document) HasFrontMatter() bool {
	return d.Meta != nil || d.Block != ""
}

// ChapterMeta is the metadata written into newly created chapters.
type ChapterMeta struct {
	Title     string `toml:"title"`
	CreatedAt string `toml:"created_at"`
	UpdatedAt string `toml:"updated_at"`
}

// Strip removes leading metadata blocks from raw and returns the body.
// Input without a leading marker line, or without a closing marker line,
// is returned unchanged. Stacked blocks are all removed so that applying
// Strip to its own output is a no-op.
func Strip(raw string) string {
	for {
		_, body, ok := splitBlock(raw)
		if !ok {
			return raw
		}
		raw = body
	}
}

// Split separates the first metadata block from the body and decodes it.
// Undecodable TOML keeps the raw block but leaves Meta nil.
func Split(raw string) Document {
	block, body, ok := splitBlock(raw)
	if !ok {
		return Document{Body: raw}
	}
	doc := Document{Block: block, Body: Strip(body)}

	var meta map[string]any
	if _, err := toml.Decode(block, &meta); err == nil {
		if meta == nil {
			meta = map[string]any{}
		}
		doc.Meta = meta
		if t, ok := meta["title"].(string); ok {
			doc.Title = t
		}
	}
	return doc
}

// Join rebuilds a document from a raw block and a body. An empty block
// yields the body alone.
func Join(block, body string) string {
	if block == "" {
		return body
	}
	var b strings.Builder
	b.WriteString(Marker + "\n")
	b.WriteString(block)
	if !strings.HasSuffix(block, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(Marker + "\n")
	b.WriteString(body)
	return b.String()
}

// Render encodes meta as a TOML block followed by a blank line and body.
func Render(meta ChapterMeta, body string) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(meta); err != nil {
		return "", err
	}
	return Join(buf.String(), "\n"+body), nil
}

// splitBlock finds a metadata block at the very start of raw. The opening
// and closing markers must each be a whole line; the line break after the
// closing marker is consumed.
func splitBlock(raw string) (block, body string, ok bool) {
	rest, found := strings.CutPrefix(raw, Marker)
	if !found {
		return "", raw, false
	}
	switch {
	case strings.HasPrefix(rest, "\r\n"):
		rest = rest[2:]
	case strings.HasPrefix(rest, "\n"):
		rest = rest[1:]
	default:
		return "", raw, false
	}
	offset := len(raw) - len(rest)

	for start := offset; start <= len(raw); {
		end := strings.IndexByte(raw[start:], '\n')
		lineEnd := len(raw)
		next := len(raw)
		if end >= 0 {
			lineEnd = start + end
			next = lineEnd + 1
		}
		line := strings.TrimSuffix(raw[start:lineEnd], "\r")
		if line == Marker {
			block = strings.TrimSuffix(raw[offset:start], "\n")
			block = strings.TrimSuffix(block, "\r")
			return block, raw[next:], true
		}
		if end < 0 {
			break
		}
		start = next
	}
	return "", raw, false
}
