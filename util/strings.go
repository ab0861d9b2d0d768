package util

import (
	"strings"
)

// TailString returns at most the last max bytes of s. A truncated
// result is prefixed with "...".
func TailString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}

// ShellQuote wraps s in single quotes for a POSIX shell. Embedded
// single quotes are written as '\'' so no expansion happens inside.
func ShellQuote(s string) string {
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

// Heredoc builds "cmd <<'DELIM'\nbody\nDELIM". The quoted delimiter
// suppresses all shell expansion of the body. The delimiter is
// extended until it does not appear as a line of the body.
func Heredoc(cmd, delim, body string) string {
	lines := strings.Split(body, "\n")
	for containsLine(lines, delim) {
		delim += "_"
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return cmd + " <<'" + delim + "'\n" + body + delim
}

func containsLine(lines []string, s string) bool {
	for _, l := range lines {
		if l == s {
			return true
		}
	}
	return false
}
