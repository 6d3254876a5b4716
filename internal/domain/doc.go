// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (identity.go, profile.go, preferences.go, layout.go, store.go, ...)
// hold shared types and the consumer-side interfaces of the persistence gateway,
// the profile mapper and the session attribute store. No implementation code beyond
// small value helpers.
package domain
