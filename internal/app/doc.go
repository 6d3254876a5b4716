// Package app provides the application service layer.
//
// Orchestrates use cases: attaching a preferences manager to a session,
// switching profiles, editing stylesheet parameters and ending sessions.
// Sits between HTTP handlers and the preferences core. Depends on domain
// interfaces, not concrete implementations.
package app
