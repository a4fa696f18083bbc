// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tarmount

import (
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// A segment is hidden if it starts with a dot and is neither "." nor "..".
// Both slashes separate segments.
var hiddenSegment = regexp.MustCompile(`(^|[\\/])\.([^.\\/]|\.[^\\/])`)

// IsHidden reports whether any segment of a member path is a dotfile.
func IsHidden(name string) bool {
	return hiddenSegment.MatchString(name)
}

// HidePatterns reports member paths matching any of the doublestar patterns.
// Invalid patterns never match.
func HidePatterns(patterns ...string) func(string) bool {
	return func(name string) bool {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, name); ok {
				return true
			}
		}
		return false
	}
}
