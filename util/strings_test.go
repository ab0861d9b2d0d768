package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTailString(t *testing.T) {
	require.Equal(t, "short", TailString("short", 10))
	require.Equal(t, "...6789", TailString("0123456789", 4))
	require.Equal(t, "abc", TailString("abc", 0))
	long := strings.Repeat("x", 5000) + "END"
	out := TailString(long, 1000)
	require.Equal(t, 1003, len(out))
	require.True(t, strings.HasSuffix(out, "END"))
}

func TestShellQuote(t *testing.T) {
	require.Equal(t, `'/home/odoo/acme'`, ShellQuote("/home/odoo/acme"))
	require.Equal(t, `'it'\''s'`, ShellQuote("it's"))
	require.Equal(t, `'$HOME `+"`id`"+`'`, ShellQuote("$HOME `id`"))
}

func TestHeredoc(t *testing.T) {
	out := Heredoc("psql", "EOF", "SELECT '$HOME';")
	require.Equal(t, "psql <<'EOF'\nSELECT '$HOME';\nEOF", out)

	// body containing the delimiter line gets a longer delimiter
	out = Heredoc("cat", "EOF", "a\nEOF\nb\n")
	require.Equal(t, "cat <<'EOF_'\na\nEOF\nb\nEOF_", out)
}

func TestRandPassword(t *testing.T) {
	seen := map[string]bool{}
	for ii := 0; ii < 20; ii++ {
		pw, err := RandPassword(24)
		require.Nil(t, err)
		require.Equal(t, 24, len(pw))
		for _, c := range pw {
			require.True(t, strings.ContainsRune(PasswordAlphabet, c), "char %c", c)
		}
		require.False(t, seen[pw])
		seen[pw] = true
	}
	_, err := RandPassword(0)
	require.NotNil(t, err)
}
