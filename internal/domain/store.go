package domain

import "context"

// ProfileStore looks up profiles. A miss is reported as ErrProfileNotFound.
type ProfileStore interface {
	GetUserProfile(ctx context.Context, identity Identity, agent ClientSignature) (*Profile, error)
	GetSystemProfile(ctx context.Context, agent ClientSignature) (*Profile, error)
	GetUserProfileByName(ctx context.Context, identity Identity, name string) (*Profile, error)
	GetSystemProfileByName(ctx context.Context, name string) (*Profile, error)
}

// PreferencesStore reads and writes a user's preferences per profile.
// A miss is reported as ErrPreferencesNotFound.
type PreferencesStore interface {
	GetPreferences(ctx context.Context, identity Identity, profile *Profile) (*Preferences, error)
	PutPreferences(ctx context.Context, identity Identity, prefs *Preferences) error
	GetStructureStylesheetPreferences(ctx context.Context, identity Identity, profileID, stylesheetID int) (*StructureStylesheetPreferences, error)
}

// StylesheetStore supplies stylesheet descriptions. A miss is reported as ErrStylesheetNotFound.
type StylesheetStore interface {
	GetStructureStylesheetDescription(ctx context.Context, id int) (*StructureStylesheetDescription, error)
	GetThemeStylesheetDescription(ctx context.Context, id int) (*ThemeStylesheetDescription, error)
}

// LayoutStore is the persistence gateway consumed by the preferences core.
// Implementations must be safe for concurrent use by many sessions.
type LayoutStore interface {
	ProfileStore
	PreferencesStore
	StylesheetStore
}
