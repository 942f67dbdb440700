// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"strings"
	"time"
)

// Release version keys with a special meaning.
const (
	ReleaseStable = "stable"
	ReleaseDevel  = "devel"
)

// Release is a WeeChat release record. The "stable" and "devel" rows carry
// the current version number in their Description.
type Release struct {
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// BaseDescription returns the description with any build suffix removed
// ("4.5.0-dev" -> "4.5.0").
func (r *Release) BaseDescription() string {
	if pos := strings.Index(r.Description, "-"); pos >= 0 {
		return r.Description[:pos]
	}
	return r.Description
}
