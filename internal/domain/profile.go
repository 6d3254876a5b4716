package domain

import (
	"slices"

	"golang.org/x/text/language"
)

// NullClientSignature replaces a missing or empty user agent before any profile lookup.
const NullClientSignature ClientSignature = "null"

// ClientSignature is the client's declared agent string, normalized.
type ClientSignature string

// NormalizeClientSignature maps an absent or empty raw agent to
// NullClientSignature. Any other value, blanks included, is kept verbatim.
func NormalizeClientSignature(raw string) ClientSignature {
	if raw == "" {
		return NullClientSignature
	}
	return ClientSignature(raw)
}

// Profile identifies a layout + stylesheet configuration bundle.
type Profile struct {
	ID          int
	Name        string // functional name, the lookup key for mapped profiles
	Description string
	System      bool

	LayoutID              int
	StructureStylesheetID int
	ThemeStylesheetID     int

	// Locales is set only when locale-aware rendering is enabled.
	Locales []language.Tag
}

// SameProfile reports whether two profiles are equivalent for layout reuse:
// same functional name and same system-default flag.
func SameProfile(a, b *Profile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.System == b.System
}

// Clone returns an independent copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Locales = slices.Clone(p.Locales)
	return &c
}
