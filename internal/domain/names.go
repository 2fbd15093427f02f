package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fathima-sithara/teamchat/internal/apperr"
)

const (
	MinNameLen = 3
	MaxNameLen = 80
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeChannelName lowercases name and collapses every whitespace run
// into a single hyphen. Leading and trailing runs are not trimmed:
// "  general " becomes "-general-".
func NormalizeChannelName(name string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(name, "-"))
}

// ChannelName normalizes and validates a channel name.
func ChannelName(raw string) (string, error) {
	name := NormalizeChannelName(raw)
	if err := checkLength("channel name", name); err != nil {
		return "", err
	}
	return name, nil
}

// WorkspaceName trims and validates a workspace name.
func WorkspaceName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := checkLength("workspace name", name); err != nil {
		return "", err
	}
	return name, nil
}

func checkLength(field, s string) error {
	n := utf8.RuneCountInString(s)
	if n < MinNameLen || n > MaxNameLen {
		return fmt.Errorf("%s must be %d-%d characters: %w", field, MinNameLen, MaxNameLen, apperr.ErrValidation)
	}
	return nil
}
