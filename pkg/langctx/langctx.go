// Package langctx implements the single source of truth for a request's
// language/region decisions, and the immutability enforcement the
// pipeline stages are checked against after every stage that touches it.
package langctx

import "fmt"

// Context is the per-request language/region decision set. Assistant
// language and its confidence are set exactly once, by the Gate stage;
// UILanguage, ProviderLanguage, and RegionCode may be refined by later
// stages.
type Context struct {
	AssistantLanguage           string
	AssistantLanguageConfidence float64

	UILanguage       string
	ProviderLanguage string
	RegionCode       string
}

// Update is the set of fields a later stage may refine.
type Update struct {
	UILanguage       *string
	ProviderLanguage *string
	RegionCode       *string
}

// ViolationError reports an attempt to mutate an immutable field.
type ViolationError struct {
	Stage string
	Field string
	From  string
	To    string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("langctx: stage %q attempted to change immutable field %q (%q -> %q)", e.Stage, e.Field, e.From, e.To)
}

// Init is called exactly once, by the Gate stage, to establish the
// immutable assistantLanguage/confidence pair.
func Init(assistantLanguage string, confidence float64, regionCode string) Context {
	return Context{
		AssistantLanguage:           assistantLanguage,
		AssistantLanguageConfidence: confidence,
		RegionCode:                  regionCode,
	}
}

// Apply rebuilds ctx with the mutable fields from u, preserving the
// immutable ones unchanged. Callers that need to check whether a stage
// attempted to change an immutable field should use AssertImmutable on
// the stage's own returned Context before calling Apply.
func Apply(ctx Context, u Update) Context {
	next := ctx
	if u.UILanguage != nil {
		next.UILanguage = *u.UILanguage
	}
	if u.ProviderLanguage != nil {
		next.ProviderLanguage = *u.ProviderLanguage
	}
	if u.RegionCode != nil {
		next.RegionCode = *u.RegionCode
	}
	return next
}

// AssertImmutable compares the Context a stage received (original)
// against what it returned (received) and fails if the stage changed
// either of the two immutable fields. Called after every stage that was
// handed language data to act on.
func AssertImmutable(original, received Context, stage string) error {
	if original.AssistantLanguage != received.AssistantLanguage {
		return &ViolationError{Stage: stage, Field: "assistantLanguage", From: original.AssistantLanguage, To: received.AssistantLanguage}
	}
	if original.AssistantLanguageConfidence != received.AssistantLanguageConfidence {
		return &ViolationError{
			Stage: stage,
			Field: "assistantLanguageConfidence",
			From:  fmt.Sprintf("%v", original.AssistantLanguageConfidence),
			To:    fmt.Sprintf("%v", received.AssistantLanguageConfidence),
		}
	}
	return nil
}

// FallbackSources are consulted, in order, when no Context is available
// for a request that still needs a language to narrate in.
type FallbackSources struct {
	StoredJobLanguage string
	QueryLanguage     string
	UILanguage        string
}

// VerifyAssistantLanguageGraceful checks the language about to be used
// for user-facing text. If ctx is present, the check is strict: a
// mismatch is an error. If ctx is absent, a language is derived from the
// fallback chain and the caller must log a warning — it is never
// silently wrong. ok reports whether the derived/verified language
// equals payloadLanguage.
func VerifyAssistantLanguageGraceful(ctx *Context, payloadLanguage string, fallback FallbackSources) (resolvedLanguage string, ok bool, warn string) {
	if ctx != nil {
		if ctx.AssistantLanguage != payloadLanguage {
			return ctx.AssistantLanguage, false, ""
		}
		return ctx.AssistantLanguage, true, ""
	}

	resolved := fallback.StoredJobLanguage
	if resolved == "" {
		resolved = fallback.QueryLanguage
	}
	if resolved == "" {
		resolved = fallback.UILanguage
	}
	if resolved == "" {
		resolved = "en"
	}
	return resolved, resolved == payloadLanguage, "no LanguageContext available; derived assistant language from fallback chain"
}

// AssertProviderLanguage is called before every outbound provider call;
// a blank providerLanguage is itself a violation since the Intent stage
// must have set it.
func AssertProviderLanguage(ctx Context, providerLanguage string) error {
	if providerLanguage == "" {
		return fmt.Errorf("langctx: providerLanguage unset before provider call")
	}
	if ctx.ProviderLanguage != "" && ctx.ProviderLanguage != providerLanguage {
		return fmt.Errorf("langctx: provider call language %q disagrees with context %q", providerLanguage, ctx.ProviderLanguage)
	}
	return nil
}
