// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package submission

import "errors"

// ValidationError is a user-correctable rejection of a submitted theme
// file. Code is stable and machine-readable; Message is shown to the
// submitter.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation failures, in the order they are checked.
var (
	ErrTooLarge              = &ValidationError{Code: "too_large", Message: "Theme file too big."}
	ErrMissingProperty       = &ValidationError{Code: "missing_property", Message: "Invalid theme file."}
	ErrPropertyTooLong       = &ValidationError{Code: "property_too_long", Message: "Invalid theme file: name or version too long."}
	ErrIncompatibleVersion   = &ValidationError{Code: "incompatible_version", Message: "Invalid WeeChat version, too old!"}
	ErrInvalidNameSuffix     = &ValidationError{Code: "invalid_name_suffix", Message: "Invalid name inside theme file."}
	ErrDuplicateName         = &ValidationError{Code: "duplicate_name", Message: "This name already exists."}
	ErrInvalidNameCharacters = &ValidationError{Code: "invalid_name_chars", Message: "Invalid name inside theme file."}
	ErrTargetNotFound        = &ValidationError{Code: "target_not_found", Message: "Theme not found."}
	ErrNameMismatch          = &ValidationError{Code: "name_mismatch", Message: "Invalid name: different from theme."}
)

// ErrReleaseMissing is returned when the stable or devel release record
// does not exist. It is a deployment problem, never the submitter's fault.
var ErrReleaseMissing = errors.New("release record missing")

// AsValidationError returns the ValidationError wrapped in err, if any.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
