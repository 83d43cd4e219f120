package core

import (
	"regexp"
	"strings"
)

var wordStartRegex = regexp.MustCompile(`\b\w`)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// HumanizeKey turns a wire field name into a label: "new_password1" -> "New Password1".
func HumanizeKey(key string) string {
	if key == "" {
		return ""
	}
	return wordStartRegex.ReplaceAllStringFunc(strings.ReplaceAll(key, "_", " "), strings.ToUpper)
}
