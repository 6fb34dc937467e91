package safety

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmpty    = errors.New("message cannot be empty")
	ErrTooShort = errors.New("message is too short")
	ErrTooLong  = errors.New("message exceeds max length")
	ErrLinkSpam = errors.New("message failed link spam check")
)

var linkPattern = regexp.MustCompile(`(?i)https?://|www\.`)

// ValidateMessage checks a human battle line against the length bounds and
// returns it trimmed. Roasts are allowed to be rude, so there is no
// profanity filter; link spam is still refused.
func ValidateMessage(content string, minLen, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmpty
	}
	length := utf8.RuneCountInString(trimmed)
	if minLen > 0 && length < minLen {
		return "", fmt.Errorf("%w: minimum %d characters", ErrTooShort, minLen)
	}
	if maxLen > 0 && length > maxLen {
		return "", fmt.Errorf("%w: maximum %d characters", ErrTooLong, maxLen)
	}
	if len(linkPattern.FindAllStringIndex(trimmed, -1)) > 2 {
		return "", ErrLinkSpam
	}
	return trimmed, nil
}
