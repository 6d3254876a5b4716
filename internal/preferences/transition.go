package preferences

import (
	"context"
	"log/slog"

	"github.com/pscheid92/portalprefs/internal/domain"
)

// Transition outcomes reported to the Recorder.
const (
	TransitionNoop    = "noop"
	TransitionKept    = "kept_layout"
	TransitionAdopted = "adopted_layout"
	TransitionRebuilt = "rebuilt_layout"
	TransitionFailed  = "failed"
)

// SetLayoutAndPreferences replaces the active preferences with newPrefs.
//
// When the new profile is the same as the current one (domain.SameProfile) the
// current LayoutManager stays. Otherwise newLayout is adopted if it is bound to
// this identity and its layout id equals the new profile's layout id; any other
// case, a handle of another user included, builds a fresh LayoutManager. The new preferences are then persisted.
// Only when every step succeeded are layout, preferences and session slot
// replaced together. Errors are *TransitionError and leave the manager as it was.
// A nil newPrefs is a no-op.
func (m *Manager) SetLayoutAndPreferences(ctx context.Context, newLayout domain.LayoutManager, newPrefs *domain.Preferences) error {
	if newPrefs == nil {
		m.recordTransition(TransitionNoop)
		return nil
	}

	fail := func(err error) error {
		m.recordTransition(TransitionFailed)
		name := ""
		if newPrefs.Profile != nil {
			name = newPrefs.Profile.Name
		}
		slog.ErrorContext(ctx, "Preferences transition failed", "user_id", m.identity.UserID, "profile", name, "policy", TransitionPolicy.String(), "error", err)
		return &TransitionError{Profile: name, Cause: err}
	}

	if m.prefs == nil {
		return fail(ErrUnmapped)
	}
	if newPrefs.Profile == nil {
		return fail(ErrNoProfile)
	}

	lm, outcome := m.layout, TransitionKept
	if !domain.SameProfile(m.prefs.Profile, newPrefs.Profile) {
		switch {
		case m.compatible(newLayout, newPrefs.Profile):
			lm, outcome = newLayout, TransitionAdopted
		default:
			built, err := m.layouts.NewLayoutManager(ctx, m.identity, newPrefs.Profile)
			if err != nil {
				return fail(err)
			}
			lm, outcome = built, TransitionRebuilt
		}
	}

	if err := m.store.PutPreferences(ctx, m.identity, newPrefs); err != nil {
		return fail(err)
	}

	m.layout = lm
	m.prefs = newPrefs
	m.attrs.Set(CacheKey, newPrefs)
	if m.structureDesc.stylesheetID != newPrefs.Profile.StructureStylesheetID {
		m.structureDesc.reset()
	}
	if m.themeDesc.stylesheetID != newPrefs.Profile.ThemeStylesheetID {
		m.themeDesc.reset()
	}

	m.recordTransition(outcome)
	slog.InfoContext(ctx, "Preferences switched", "user_id", m.identity.UserID, "profile", newPrefs.Profile.Name, "layout_id", lm.LayoutID(), "outcome", outcome)
	return nil
}

// compatible reports whether lm can serve p for this manager's user. A handle
// bound to another identity is never adopted.
func (m *Manager) compatible(lm domain.LayoutManager, p *domain.Profile) bool {
	return lm != nil && lm.LayoutID() == p.LayoutID && lm.Identity().UserID == m.identity.UserID
}
