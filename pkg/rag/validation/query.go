package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"docchat-be/pkg/store"
)

// Error is a client-input problem. Message is safe to show to the user.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

func (e *Error) ClientError() bool { return true }

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?im)^\s*system\s*:`),
	regexp.MustCompile(`<\|[^|>]*\|>`),
	regexp.MustCompile(`(?i)</?userInput>`),
}

type QueryValidator struct {
	maxLength int
}

func NewQueryValidator(maxLength int) *QueryValidator {
	if maxLength <= 0 {
		maxLength = 6000
	}
	return &QueryValidator{maxLength: maxLength}
}

// Sanitize strips control characters other than newline and tab and trims
// surrounding whitespace.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Query returns the sanitized query or a *Error.
func (v *QueryValidator) Query(raw string) (string, error) {
	q := Sanitize(raw)
	if q == "" {
		return "", &Error{Field: "query", Message: "Message cannot be empty."}
	}
	if utf8.RuneCountInString(q) > v.maxLength {
		return "", &Error{Field: "query", Message: "Message is too long."}
	}
	for _, p := range injectionPatterns {
		if p.MatchString(q) {
			return "", &Error{Field: "query", Message: "Message contains content that cannot be processed."}
		}
	}
	return q, nil
}

// Focus validates the focus range and sanitizes its surrounding text.
func (v *QueryValidator) Focus(focus *store.FocusContext) (*store.FocusContext, error) {
	if focus == nil {
		return nil, nil
	}
	if focus.StartChar < 0 || focus.EndChar < 0 || focus.StartChar > focus.EndChar {
		return nil, &Error{Field: "focus_context", Message: "Focus range is invalid."}
	}
	out := *focus
	out.SurroundingText = Sanitize(focus.SurroundingText)
	if utf8.RuneCountInString(out.SurroundingText) > v.maxLength {
		return nil, &Error{Field: "focus_context", Message: "Focused text is too long."}
	}
	return &out, nil
}
