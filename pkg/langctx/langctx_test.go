package langctx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitAndApply(t *testing.T) {
	ctx := Init("he", 0.92, "IL")
	require.Equal(t, "he", ctx.AssistantLanguage)

	ui := "he"
	next := Apply(ctx, Update{UILanguage: &ui})
	require.Equal(t, "he", next.UILanguage)
	require.Equal(t, "he", next.AssistantLanguage, "immutable field preserved across Apply")
}

func TestAssertImmutable_ViolationDetected(t *testing.T) {
	original := Init("he", 0.9, "IL")
	mutated := original
	mutated.AssistantLanguage = "en"

	err := AssertImmutable(original, mutated, "intent")
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "intent", verr.Stage)
}

func TestAssertImmutable_NoViolation(t *testing.T) {
	original := Init("en", 0.8, "US")
	received := original
	received.UILanguage = "en-US"
	require.NoError(t, AssertImmutable(original, received, "intent"))
}

func TestVerifyAssistantLanguageGraceful_StrictWithContext(t *testing.T) {
	ctx := Init("he", 0.9, "IL")
	resolved, ok, warn := VerifyAssistantLanguageGraceful(&ctx, "en", FallbackSources{})
	require.False(t, ok)
	require.Equal(t, "he", resolved)
	require.Empty(t, warn)
}

func TestVerifyAssistantLanguageGraceful_FallbackChain(t *testing.T) {
	resolved, ok, warn := VerifyAssistantLanguageGraceful(nil, "fr", FallbackSources{QueryLanguage: "fr"})
	require.True(t, ok)
	require.Equal(t, "fr", resolved)
	require.NotEmpty(t, warn)
}

func TestAssertProviderLanguage(t *testing.T) {
	ctx := Init("en", 0.9, "US")
	ctx.ProviderLanguage = "en"
	require.NoError(t, AssertProviderLanguage(ctx, "en"))
	require.Error(t, AssertProviderLanguage(ctx, ""))
	require.Error(t, AssertProviderLanguage(ctx, "fr"))
}
