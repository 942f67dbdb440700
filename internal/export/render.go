// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"weechatorg/internal/models"
)

// timeLayout formats the added/updated fields.
const timeLayout = "2006-01-02 15:04:05"

// field is one exported key/value pair.
type field struct {
	key   string
	value string
}

// record is the exported form of one theme. Only the fields listed here
// are ever published; the approval note and visibility flag never are.
type record struct {
	id      int64
	updated time.Time
	fields  []field
}

var (
	// markupEscaper escapes the characters significant in XML and HTML text.
	markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

	// mailObfuscator makes addresses harder to harvest from the feeds.
	mailObfuscator = strings.NewReplacer("@", " [at] ", ".", " [dot] ")
)

// newRecord maps a theme to its exported fields. md5sum is the checksum
// computed from the file on disk, not the stored column.
func newRecord(t *models.Theme, md5sum, siteURL string) record {
	return record{
		id:      t.ID,
		updated: t.Updated,
		fields: []field{
			{"name", t.Name},
			{"version", t.Version},
			{"md5sum", md5sum},
			{"desc", markupEscaper.Replace(t.Description)},
			{"author", t.Author},
			{"mail", mailObfuscator.Replace(t.Mail)},
			{"added", t.Added.UTC().Format(timeLayout)},
			{"updated", t.Updated.UTC().Format(timeLayout)},
			{"url", siteURL + t.BuildURL()},
		},
	}
}

// renderXML builds themes.xml.
func renderXML(records []record) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<themes>\n")
	for _, r := range records {
		fmt.Fprintf(&b, "  <theme id=\"%d\">\n", r.id)
		for _, f := range r.fields {
			fmt.Fprintf(&b, "    <%s>%s</%s>\n", f.key, markupEscaper.Replace(xmlChars(f.value)), f.key)
		}
		b.WriteString("  </theme>\n")
	}
	b.WriteString("</themes>\n")
	return b.Bytes()
}

// xmlChars drops the runes XML 1.0 does not allow in character data:
// C0 controls other than tab, newline and carriage return, and the
// non-characters U+FFFE and U+FFFF.
func xmlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}

// renderJSON builds themes.json. The layout is fixed (two-space indent,
// every value a string) because clients diff it line by line.
func renderJSON(records []record) []byte {
	var b bytes.Buffer
	b.WriteString("[\n")
	for i, r := range records {
		b.WriteString("  {\n")
		fmt.Fprintf(&b, "    \"id\": \"%d\"", r.id)
		for _, f := range r.fields {
			fmt.Fprintf(&b, ",\n    \"%s\": \"%s\"", f.key, jsonEscape(f.value))
		}
		b.WriteString("\n  }")
		if i < len(records)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	return b.Bytes()
}

// jsonEscape escapes s for use inside a double-quoted JSON string. Single
// quotes are escaped too so the feed can be embedded in quoted contexts.
func jsonEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteString(`\u0027`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
