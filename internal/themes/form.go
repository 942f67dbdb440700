// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package themes

import (
	"strings"
	"unicode/utf8"

	"weechatorg/internal/models"
	"weechatorg/internal/submission"
)

// MaxCommentLen bounds the free-text note a submitter leaves for the
// moderators. It is logged, never stored.
const MaxCommentLen = 1024

// Form field failures. They share one code; the message names the field.
var (
	ErrDescriptionTooLong = &submission.ValidationError{Code: "invalid_field", Message: "Description is too long."}
	ErrAuthorRequired     = &submission.ValidationError{Code: "invalid_field", Message: "Author is required."}
	ErrAuthorTooLong      = &submission.ValidationError{Code: "invalid_field", Message: "Author is too long."}
	ErrInvalidMail        = &submission.ValidationError{Code: "invalid_field", Message: "Invalid e-mail address."}
	ErrCommentTooLong     = &submission.ValidationError{Code: "invalid_field", Message: "Comment is too long."}
	ErrDescriptionInvalid = &submission.ValidationError{Code: "invalid_field", Message: "Description contains invalid characters."}
	ErrAuthorInvalid      = &submission.ValidationError{Code: "invalid_field", Message: "Author contains invalid characters."}
)

// checkForm validates the text fields sent alongside a theme file.
func checkForm(description, author, mail, comment string) error {
	if utf8.RuneCountInString(description) > models.MaxThemeDescLen {
		return ErrDescriptionTooLong
	}
	if !printable(description, true) {
		return ErrDescriptionInvalid
	}
	if author == "" {
		return ErrAuthorRequired
	}
	if utf8.RuneCountInString(author) > models.MaxThemeAuthorLen {
		return ErrAuthorTooLong
	}
	if !printable(author, false) {
		return ErrAuthorInvalid
	}
	if utf8.RuneCountInString(mail) > models.MaxThemeMailLen || !printable(mail, false) || !validMail(mail) {
		return ErrInvalidMail
	}
	if utf8.RuneCountInString(comment) > MaxCommentLen {
		return ErrCommentTooLong
	}
	return nil
}

// printable reports whether s is valid UTF-8 that can be published in the
// XML feed: no C0 or DEL controls, and no U+FFFE or U+FFFF. multiline
// allows tab, newline and carriage return.
func printable(s string, multiline bool) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			if !multiline {
				return false
			}
		case r < 0x20, r == 0x7f, r == 0xFFFE, r == 0xFFFF:
			return false
		}
	}
	return true
}

// validMail is a shape check only: something@something, no spaces.
func validMail(mail string) bool {
	local, domain, ok := strings.Cut(mail, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	return !strings.ContainsAny(mail, " \t\r\n") && !strings.Contains(domain, "@")
}
