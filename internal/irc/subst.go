package irc

import "strings"

// Metadata carries the current stream fields used for message substitution.
// Keys are the canonical field names; missing keys render as "No data".
type Metadata map[string]string

// MetadataKeys is the full set of substitutable fields.
var MetadataKeys = []string{
	"artist", "title", "album", "songname",
	"djname", "description", "url", "source",
}

const noData = "No data"

// NewMetadata returns a metadata set with every field at its placeholder.
func NewMetadata() Metadata {
	m := make(Metadata, len(MetadataKeys))
	for _, k := range MetadataKeys {
		m[k] = noData
	}
	return m
}

func (m Metadata) Clone() Metadata {
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Merge copies known fields from src, ignoring anything else.
func (m Metadata) Merge(src map[string]string) {
	for _, k := range MetadataKeys {
		if v, ok := src[k]; ok {
			m[k] = v
		}
	}
}

// tokenFields maps a placeholder letter to its metadata field.
var tokenFields = map[byte]string{
	'r': "artist",
	't': "title",
	'l': "album",
	's': "songname",
	'n': "djname",
	'd': "description",
	'u': "url",
	'U': "source",
}

// Substitute expands placeholder tokens in msg: %r artist, %t title,
// %l album, %s song name, %n DJ name, %d description, %u listen URL,
// %U source URI, %% a literal percent. Unknown tokens pass through.
func Substitute(msg string, meta Metadata) string {
	if !strings.ContainsRune(msg, '%') {
		return msg
	}
	var b strings.Builder
	b.Grow(len(msg) + 16)
	for i := 0; i < len(msg); i++ {
		ch := msg[i]
		if ch != '%' || i+1 >= len(msg) {
			b.WriteByte(ch)
			continue
		}
		next := msg[i+1]
		if next == '%' {
			b.WriteByte('%')
			i++
			continue
		}
		if field, ok := tokenFields[next]; ok {
			v := meta[field]
			if v == "" {
				v = noData
			}
			b.WriteString(v)
			i++
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
