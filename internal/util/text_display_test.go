package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisplaySnippet(t *testing.T) {
	in := "Hello\x00   world \n\t again"
	out := DisplaySnippet(in, 100)
	require.Equal(t, "Hello world again", out)

	long := strings.Repeat("a", 30)
	require.Equal(t, strings.Repeat("a", 10)+"...", DisplaySnippet(long, 10))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 500))
	require.Equal(t, "abc...", Truncate("abcdef", 3))
	require.Equal(t, "éé...", Truncate("éééé", 2))
	require.Equal(t, "keep", Truncate("keep", 0))
}

func TestNormalizeKey(t *testing.T) {
	a := NormalizeKey("  What is  2 + 2?\n")
	b := NormalizeKey("what is 2+2")
	require.Equal(t, "what is 2+2", a)
	require.Equal(t, a, b)
	require.Empty(t, NormalizeKey("?!"))
}

func TestNormalizeKeyKeepsOperators(t *testing.T) {
	require.Equal(t, "solve 3x+5=11", NormalizeKey("Solve 3x + 5 = 11."))
	require.NotEqual(t, NormalizeKey("Solve 3x + 5 = 11."), NormalizeKey("Solve 3x - 5 = 11."))
	require.NotEqual(t, NormalizeKey("Is 2 < 3?"), NormalizeKey("Is 2 > 3?"))
	require.NotEqual(t, NormalizeKey("Find 2^3."), NormalizeKey("Find 2*3."))
	require.Equal(t, "is x≤3.5", NormalizeKey("Is x ≤ 3.5 ?"))
	require.NotEqual(t, NormalizeKey("Round 3.5"), NormalizeKey("Round 35"))
}
