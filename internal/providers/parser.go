package providers

import "strings"

// ProviderRef is one entry from a provider list such as
// "openai:primary|anthropic|mock". Name selects the adapter; the optional
// KeyAlias after the colon selects which credential env var the adapter reads.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList splits a pipe-separated provider config string into refs.
// Blank entries are dropped; an empty list falls back to the mock provider so
// a bare environment still serves deterministic responses.
func ParseProviderList(raw string) []ProviderRef {
	out := make([]ProviderRef, 0, 4)
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ref := ProviderRef{Raw: part, Name: part}
		if name, alias, ok := strings.Cut(part, ":"); ok {
			ref.Name = strings.TrimSpace(name)
			ref.KeyAlias = strings.TrimSpace(alias)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
