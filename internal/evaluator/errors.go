package evaluator

import (
	"regexp"
	"strings"
)

// Error is a parse or evaluation failure for a command.
type Error struct {
	Command string
	Err     error
}

func (e *Error) Error() string {
	return "evaluating " + e.Command + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b[@-Z\\-_]`)
	htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// FormatError renders err for display inside HTML: terminal escape sequences
// and other control characters are removed and markup characters escaped.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return FormatMessage(err.Error())
}

// FormatMessage applies the FormatError rules to an arbitrary message.
func FormatMessage(msg string) string {
	msg = ansiEscape.ReplaceAllString(msg, "")
	msg = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, msg)
	return htmlReplacer.Replace(msg)
}
