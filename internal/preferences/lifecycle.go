package preferences

import (
	"context"
	"log/slog"
)

// SavesAtLogout reports whether FinishSession persists state.
func (m *Manager) SavesAtLogout() bool {
	return m.saveAtLogout
}

// FinishSession is called once when the session ends. If saving at logout is
// enabled it persists the preferences and the layout. Failures are logged and
// never returned; the session is discarded either way.
func (m *Manager) FinishSession(ctx context.Context) {
	if !m.saveAtLogout || m.prefs == nil || m.layout == nil {
		return
	}

	if err := m.store.PutPreferences(ctx, m.identity, m.prefs); err != nil {
		slog.ErrorContext(ctx, "Unable to persist preferences on session end", "user_id", m.identity.UserID, "error", err)
		return
	}
	if err := m.layout.SaveLayout(ctx); err != nil {
		slog.ErrorContext(ctx, "Unable to persist layout on session end", "user_id", m.identity.UserID, "error", err)
		return
	}
	slog.DebugContext(ctx, "Session state persisted", "user_id", m.identity.UserID, "profile", m.prefs.Profile.Name)
}
