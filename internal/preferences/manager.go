package preferences

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/profile"
)

// CacheKey locates the Preferences in a session's attributes.
const CacheKey = "portalprefs/preferences.Manager#preferences"

// Resolver picks the profile for a request.
type Resolver interface {
	Resolve(ctx context.Context, identity domain.Identity, req domain.RequestContext) (profile.Result, error)
}

// Recorder observes population and transition outcomes.
type Recorder interface {
	RecordPopulation(source string)
	RecordTransition(outcome string)
}

// Deps are the process-wide collaborators and settings shared by all managers.
type Deps struct {
	Store    domain.LayoutStore
	Resolver Resolver
	Layouts  domain.LayoutManagerFactory
	Recorder Recorder

	// SaveAtLogout enables the flush in FinishSession. Read once at startup.
	SaveAtLogout bool
	// LocaleAware attaches the request's Accept-Language tags to the profile.
	LocaleAware bool
}

// Manager is the preferences state of one session.
type Manager struct {
	identity  domain.Identity
	signature domain.ClientSignature
	attrs     domain.SessionAttributes

	store        domain.LayoutStore
	layouts      domain.LayoutManagerFactory
	recorder     Recorder
	saveAtLogout bool

	unmapped bool
	prefs    *domain.Preferences
	layout   domain.LayoutManager

	structureDesc memo[domain.StructureStylesheetDescription]
	themeDesc     memo[domain.ThemeStylesheetDescription]
}

// New resolves the profile for the request and populates the session's
// preferences. An unmapped client is not an error: the returned Manager reports
// Unmapped and holds no preferences or layout. Failures are returned as
// *InitializationError.
func New(ctx context.Context, identity domain.Identity, req domain.RequestContext, attrs domain.SessionAttributes, deps Deps) (*Manager, error) {
	fail := func(err error) (*Manager, error) {
		slog.ErrorContext(ctx, "Preferences initialization failed", "user_id", identity.UserID, "error", err)
		return nil, &InitializationError{UserID: identity.UserID, Cause: err}
	}

	if identity.IsZero() {
		return fail(errors.New("identity is required"))
	}
	if attrs == nil {
		return fail(errors.New("session attributes are required"))
	}
	if deps.Store == nil || deps.Resolver == nil || deps.Layouts == nil {
		return fail(errors.New("store, resolver and layout factory are required"))
	}

	m := &Manager{
		identity:     identity,
		signature:    domain.NormalizeClientSignature(req.UserAgent),
		attrs:        attrs,
		store:        deps.Store,
		layouts:      deps.Layouts,
		recorder:     deps.Recorder,
		saveAtLogout: deps.SaveAtLogout,
	}

	res, err := deps.Resolver.Resolve(ctx, identity, req)
	if err != nil {
		return fail(err)
	}
	if res.Unmapped() {
		m.unmapped = true
		return m, nil
	}

	p := res.Profile
	if deps.LocaleAware {
		p = withLocales(ctx, p, req.AcceptLanguage)
	}

	prefs := m.Populate(ctx, p)

	// The session copy may be bound to another profile than the fresh
	// resolution; the layout follows the preferences.
	lm, err := m.layouts.NewLayoutManager(ctx, identity, prefs.Profile)
	if err != nil {
		return fail(err)
	}
	m.layout = lm
	return m, nil
}

func withLocales(ctx context.Context, p *domain.Profile, acceptLanguage string) *domain.Profile {
	if acceptLanguage == "" {
		return p
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		slog.DebugContext(ctx, "Ignoring malformed Accept-Language", "value", acceptLanguage, "error", err)
		return p
	}
	c := p.Clone()
	c.Locales = tags
	return c
}

func (m *Manager) Identity() domain.Identity {
	return m.identity
}

// ClientSignature returns the normalized user agent the manager was created for.
func (m *Manager) ClientSignature() domain.ClientSignature {
	return m.signature
}

// Unmapped reports that no profile could be determined for the client. Callers
// route such sessions to the device registration flow.
func (m *Manager) Unmapped() bool {
	return m.unmapped
}

// Profile returns the active profile, nil when unmapped.
func (m *Manager) Profile() *domain.Profile {
	if m.prefs == nil {
		return nil
	}
	return m.prefs.Profile
}

// Preferences returns the live preferences held in the session.
func (m *Manager) Preferences() *domain.Preferences {
	return m.prefs
}

// PreferencesCopy returns an independent deep copy of the preferences.
func (m *Manager) PreferencesCopy() *domain.Preferences {
	return m.prefs.Clone()
}

func (m *Manager) LayoutManager() domain.LayoutManager {
	return m.layout
}

// ChannelPublishID returns the publish id of the channel with the given layout
// node id. It reports false for unknown nodes and for folders.
func (m *Manager) ChannelPublishID(nodeID string) (string, bool) {
	if m.layout == nil {
		return "", false
	}
	n, ok := m.layout.Node(nodeID)
	if !ok || n.Type != domain.NodeTypeChannel {
		return "", false
	}
	return n.ChannelPublishID, true
}

func (m *Manager) recordPopulation(source string) {
	if m.recorder != nil {
		m.recorder.RecordPopulation(source)
	}
}

func (m *Manager) recordTransition(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordTransition(outcome)
	}
}
