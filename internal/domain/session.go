package domain

// SessionAttributes is the attribute slot of one server session.
type SessionAttributes interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Remove(key string)
}
