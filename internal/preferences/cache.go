package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/portalprefs/internal/domain"
)

// Population sources reported to the Recorder.
const (
	SourceSession = "session"
	SourceStore   = "store"
	SourceDefault = "default"
)

// Populate makes the session's preferences current and returns them. The
// session slot wins over the store, so an edit made earlier in the session is
// never replaced by a later resolution. Store failures follow ReadPolicy: the
// failure is logged and default preferences for p are used.
func (m *Manager) Populate(ctx context.Context, p *domain.Profile) *domain.Preferences {
	if v, ok := m.attrs.Get(CacheKey); ok {
		if cached, ok := v.(*domain.Preferences); ok && cached != nil && cached.Profile != nil {
			slog.DebugContext(ctx, "Found preferences in session, using them", "user_id", m.identity.UserID, "profile", cached.Profile.Name)
			m.prefs = cached
			m.recordPopulation(SourceSession)
			return cached
		}
		slog.WarnContext(ctx, "Discarding unusable session preferences", "user_id", m.identity.UserID, "type", fmt.Sprintf("%T", v))
	}

	prefs, source := m.load(ctx, p)
	m.attrs.Set(CacheKey, prefs)
	m.prefs = prefs
	m.recordPopulation(source)
	return prefs
}

func (m *Manager) load(ctx context.Context, p *domain.Profile) (*domain.Preferences, string) {
	prefs, err := m.store.GetPreferences(ctx, m.identity, p)
	switch {
	case errors.Is(err, domain.ErrPreferencesNotFound):
		slog.DebugContext(ctx, "No stored preferences, using defaults", "user_id", m.identity.UserID, "profile", p.Name)
		return domain.NewDefaultPreferences(p), SourceDefault
	case err != nil:
		slog.ErrorContext(ctx, "Failed to load preferences, using defaults", "user_id", m.identity.UserID, "profile", p.Name, "policy", ReadPolicy.String(), "error", err)
		return domain.NewDefaultPreferences(p), SourceDefault
	case prefs == nil:
		return domain.NewDefaultPreferences(p), SourceDefault
	}

	// The stored copy is bound to the profile as resolved for this request.
	prefs.Profile = p
	return prefs, SourceStore
}

// memo holds one lazily fetched description together with the stylesheet id
// it was fetched for.
type memo[T any] struct {
	stylesheetID int
	value        *T
}

func (c *memo[T]) get(id int) (*T, bool) {
	if c.value == nil || c.stylesheetID != id {
		return nil, false
	}
	return c.value, true
}

func (c *memo[T]) set(id int, v *T) {
	c.stylesheetID = id
	c.value = v
}

func (c *memo[T]) reset() {
	*c = memo[T]{}
}

// StructureStylesheetDescription returns the description of the active
// profile's structure stylesheet, fetched once and kept until the stylesheet
// id changes.
func (m *Manager) StructureStylesheetDescription(ctx context.Context) (*domain.StructureStylesheetDescription, error) {
	p := m.Profile()
	if p == nil {
		return nil, ErrUnmapped
	}
	if d, ok := m.structureDesc.get(p.StructureStylesheetID); ok {
		return d, nil
	}
	d, err := m.store.GetStructureStylesheetDescription(ctx, p.StructureStylesheetID)
	if err != nil {
		return nil, fmt.Errorf("structure stylesheet %d: %w", p.StructureStylesheetID, err)
	}
	m.structureDesc.set(p.StructureStylesheetID, d)
	return d, nil
}

// ThemeStylesheetDescription is the theme counterpart of StructureStylesheetDescription.
func (m *Manager) ThemeStylesheetDescription(ctx context.Context) (*domain.ThemeStylesheetDescription, error) {
	p := m.Profile()
	if p == nil {
		return nil, ErrUnmapped
	}
	if d, ok := m.themeDesc.get(p.ThemeStylesheetID); ok {
		return d, nil
	}
	d, err := m.store.GetThemeStylesheetDescription(ctx, p.ThemeStylesheetID)
	if err != nil {
		return nil, fmt.Errorf("theme stylesheet %d: %w", p.ThemeStylesheetID, err)
	}
	m.themeDesc.set(p.ThemeStylesheetID, d)
	return d, nil
}

// ReloadStructureStylesheet re-reads the structure stylesheet preferences of the
// active profile from the store and replaces the in-session copy. Nothing
// changes when the store holds none.
func (m *Manager) ReloadStructureStylesheet(ctx context.Context) error {
	if m.prefs == nil {
		return ErrUnmapped
	}
	stylesheetID := 0
	if m.prefs.Structure != nil {
		stylesheetID = m.prefs.Structure.StylesheetID
	}

	ssp, err := m.store.GetStructureStylesheetPreferences(ctx, m.identity, m.prefs.Profile.ID, stylesheetID)
	switch {
	case errors.Is(err, domain.ErrPreferencesNotFound), err == nil && ssp == nil:
		return nil
	case err != nil:
		return fmt.Errorf("failed to reload structure stylesheet %d: %w", stylesheetID, err)
	}

	m.prefs.Structure = ssp
	m.attrs.Set(CacheKey, m.prefs)
	return nil
}
