package domain

import (
	"context"
	"net/http"
)

// RequestContext is what a ProfileMapper may inspect about the inbound request.
type RequestContext struct {
	UserAgent      string
	AcceptLanguage string
	RemoteAddr     string
	Path           string
	Header         http.Header
}

// NewRequestContext captures the mapper-relevant parts of r.
func NewRequestContext(r *http.Request) RequestContext {
	return RequestContext{
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		RemoteAddr:     r.RemoteAddr,
		Path:           r.URL.Path,
		Header:         r.Header.Clone(),
	}
}

// ProfileMapper derives a fallback profile name from the client and identity.
// It is a pure function: an empty result means "no mapping", never an error.
type ProfileMapper interface {
	MapProfileName(ctx context.Context, identity Identity, req RequestContext) string
}
