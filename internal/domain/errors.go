package domain

import "errors"

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrPreferencesNotFound = errors.New("preferences not found")
	ErrStylesheetNotFound  = errors.New("stylesheet not found")
	ErrLayoutNotFound      = errors.New("layout not found")
	ErrNodeNotFound        = errors.New("layout node not found")
	ErrSessionNotFound     = errors.New("session not found")
)
