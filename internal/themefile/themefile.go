// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package themefile reads the metadata header embedded in WeeChat theme
// files. Properties are declared in comment lines of the form:
//
//	# $name: foo.theme
//	# $weechat: 4.5.0
package themefile

import (
	"bytes"
	"regexp"
	"strings"
)

// Well-known property keys.
const (
	KeyName    = "name"
	KeyWeechat = "weechat"
)

const asciiSpace = " \t\n\v\f\r"

// propertyLine matches a single property declaration.
var propertyLine = regexp.MustCompile(`^# \$([A-Za-z]+): (.*)`)

// Properties extracts the declared properties from raw theme file content.
// Lines that are not property declarations are ignored. When a key is
// declared more than once the last declaration wins.
func Properties(raw []byte) map[string]string {
	props := make(map[string]string)
	for _, line := range bytes.Split(raw, []byte("\n")) {
		// Only ASCII whitespace is trimmed; invalid UTF-8 is replaced
		// rather than rejected.
		text := strings.ToValidUTF8(string(bytes.Trim(line, asciiSpace)), "�")
		if !strings.HasPrefix(text, "#") {
			continue
		}
		if m := propertyLine.FindStringSubmatch(text); m != nil {
			props[m[1]] = m[2]
		}
	}
	return props
}
