package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock|OpenAI:key1| ollama:qwen2.5 ")
	require.Len(t, refs, 3)
	require.Equal(t, ProviderRef{Raw: "OpenAI:key1", Name: "openai", KeyAlias: "key1"}, refs[1])
	require.Equal(t, "ollama", refs[2].Name)
	require.Equal(t, "qwen2.5", refs[2].KeyAlias)
	require.Equal(t, "ollama:qwen2.5", refs[2].String())
}

func TestParseProviderListCommasAndDuplicates(t *testing.T) {
	refs := ParseProviderList("groq, groq ,gemini:proj-1")
	require.Len(t, refs, 2)
	require.Equal(t, "groq", refs[0].String())
	require.Equal(t, "gemini:proj-1", refs[1].String())
}

func TestParseProviderListDefaultsToMock(t *testing.T) {
	refs := ParseProviderList(" | ")
	require.Equal(t, []ProviderRef{{Raw: "mock", Name: "mock"}}, refs)
}
