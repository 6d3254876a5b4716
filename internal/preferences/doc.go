// Package preferences holds the per-session preferences state: the resolved
// profile, the user's stylesheet preferences for it and the LayoutManager bound
// to both.
//
// A Manager is created once per session by New, which resolves the profile,
// populates the preferences (session slot first, then the store, then defaults)
// and builds the LayoutManager. Explicit changes go through
// SetLayoutAndPreferences, which is all-or-nothing. FinishSession optionally
// flushes state when the session ends.
//
// Concurrency: a Manager is not safe for concurrent use. It relies on the
// surrounding server to serialize requests of one session. Two concurrent
// requests in the same session may populate the session slot in either order;
// the outcome is undefined but never corrupts another session.
package preferences
