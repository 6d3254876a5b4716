package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/preferences"
	"github.com/pscheid92/portalprefs/internal/session"
)

// ManagerKey locates the session's *preferences.Manager in its attributes.
const ManagerKey = "portalprefs/app.Service#manager"

// Stylesheet kinds accepted by Invalidator.
const (
	KindStructure = "structure"
	KindTheme     = "theme"
)

// ErrUnknownParameter is returned for a stylesheet parameter the stylesheet does not declare.
var ErrUnknownParameter = errors.New("unknown stylesheet parameter")

// Invalidator evicts a shared stylesheet description.
type Invalidator interface {
	Invalidate(ctx context.Context, kind string, id int) error
}

// Service is the application layer. It owns no state of its own; per-session
// state lives in the session attributes.
type Service struct {
	deps        preferences.Deps
	invalidator Invalidator
}

type Option func(*Service)

// WithInvalidator makes ReloadStructureStylesheet evict the shared description too.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

func NewService(deps preferences.Deps, opts ...Option) *Service {
	s := &Service{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach returns the session's preferences manager, creating it on first use.
// Callers must hold the session lock. A manager created for another user is
// finished, as at session end, and discarded together with its preferences.
// Unmapped managers are returned but not kept, so the next request resolves
// again.
func (s *Service) Attach(ctx context.Context, attrs *session.Attributes, identity domain.Identity, req domain.RequestContext) (*preferences.Manager, error) {
	if v, ok := attrs.Get(ManagerKey); ok {
		m, ok := v.(*preferences.Manager)
		if ok && m.Identity() == identity {
			return m, nil
		}
		slog.InfoContext(ctx, "Session identity changed, dropping preferences", "user_id", identity.UserID)
		if ok {
			m.FinishSession(ctx)
		}
		attrs.Remove(ManagerKey)
		attrs.Remove(preferences.CacheKey)
	}

	m, err := preferences.New(ctx, identity, req, attrs, s.deps)
	if err != nil {
		return nil, err
	}
	if m.Unmapped() {
		slog.InfoContext(ctx, "No profile for client", "user_id", identity.UserID, "user_agent", string(m.ClientSignature()))
		return m, nil
	}
	attrs.Set(ManagerKey, m)
	return m, nil
}

// SwitchProfile moves the session to the named profile, preferring the user's
// own profile over the system one. Stored preferences for the target are used
// when readable, defaults otherwise.
func (s *Service) SwitchProfile(ctx context.Context, m *preferences.Manager, name string) error {
	if m.Unmapped() {
		return preferences.ErrUnmapped
	}

	p, err := s.profileByName(ctx, m.Identity(), name)
	if err != nil {
		return err
	}
	if current := m.Profile(); current != nil && len(current.Locales) > 0 {
		p = p.Clone()
		p.Locales = current.Locales
	}

	prefs, err := s.deps.Store.GetPreferences(ctx, m.Identity(), p)
	switch {
	case err == nil && prefs != nil:
		prefs.Profile = p
	case err != nil && !errors.Is(err, domain.ErrPreferencesNotFound):
		slog.WarnContext(ctx, "Failed to load preferences for profile switch, using defaults", "user_id", m.Identity().UserID, "profile", name, "error", err)
		fallthrough
	default:
		prefs = domain.NewDefaultPreferences(p)
	}

	return m.SetLayoutAndPreferences(ctx, m.LayoutManager(), prefs)
}

func (s *Service) profileByName(ctx context.Context, identity domain.Identity, name string) (*domain.Profile, error) {
	p, err := s.deps.Store.GetUserProfileByName(ctx, identity, name)
	if err == nil && p != nil {
		return p, nil
	}
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, err
	}

	p, err = s.deps.Store.GetSystemProfileByName(ctx, name)
	if err == nil && p == nil {
		err = domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return p, nil
}

// AddLayoutNode appends node under parentID in the session's layout and
// returns the stored copy. A node without an id gets a fresh one. The layout
// is persisted with the rest of the session state at session end.
func (s *Service) AddLayoutNode(ctx context.Context, m *preferences.Manager, parentID string, node domain.LayoutNode) (*domain.LayoutNode, error) {
	if m.Unmapped() {
		return nil, preferences.ErrUnmapped
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	lm := m.LayoutManager()
	if err := lm.AddNode(parentID, node); err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Layout node added", "user_id", m.Identity().UserID, "layout_id", lm.LayoutID(), "node_id", node.ID, "parent_id", parentID)

	stored, ok := lm.Node(node.ID)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", node.ID, domain.ErrNodeNotFound)
	}
	return stored, nil
}

// RemoveLayoutNode deletes a node and its subtree from the session's layout.
func (s *Service) RemoveLayoutNode(ctx context.Context, m *preferences.Manager, id string) error {
	if m.Unmapped() {
		return preferences.ErrUnmapped
	}

	lm := m.LayoutManager()
	if err := lm.RemoveNode(id); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Layout node removed", "user_id", m.Identity().UserID, "layout_id", lm.LayoutID(), "node_id", id)
	return nil
}

// StylesheetUpdate carries parameter and node attribute edits. Nil maps leave
// the corresponding values untouched.
type StylesheetUpdate struct {
	StructureParameters     map[string]string            `json:"structure_parameters,omitempty"`
	ThemeParameters         map[string]string            `json:"theme_parameters,omitempty"`
	StructureNodeAttributes map[string]map[string]string `json:"structure_node_attributes,omitempty"`
	ThemeNodeAttributes     map[string]map[string]string `json:"theme_node_attributes,omitempty"`
}

// UpdateStylesheetParameters applies u to a copy of the session's preferences
// and commits it through a transition on the same profile. Parameter names
// must be declared by the active stylesheet.
func (s *Service) UpdateStylesheetParameters(ctx context.Context, m *preferences.Manager, u StylesheetUpdate) error {
	if m.Unmapped() {
		return preferences.ErrUnmapped
	}

	structure, err := m.StructureStylesheetDescription(ctx)
	if err != nil {
		return err
	}
	theme, err := m.ThemeStylesheetDescription(ctx)
	if err != nil {
		return err
	}
	if err := checkDeclared(structure.Parameters, u.StructureParameters); err != nil {
		return fmt.Errorf("structure stylesheet %d: %w", structure.ID, err)
	}
	if err := checkDeclared(theme.Parameters, u.ThemeParameters); err != nil {
		return fmt.Errorf("theme stylesheet %d: %w", theme.ID, err)
	}

	next := m.PreferencesCopy()
	if next.Structure == nil {
		next.Structure = &domain.StructureStylesheetPreferences{StylesheetPreferences: domain.StylesheetPreferences{StylesheetID: structure.ID}}
	}
	if next.Theme == nil {
		next.Theme = &domain.ThemeStylesheetPreferences{StylesheetPreferences: domain.StylesheetPreferences{StylesheetID: theme.ID}}
	}
	apply(&next.Structure.StylesheetPreferences, u.StructureParameters, u.StructureNodeAttributes)
	apply(&next.Theme.StylesheetPreferences, u.ThemeParameters, u.ThemeNodeAttributes)

	return m.SetLayoutAndPreferences(ctx, nil, next)
}

func checkDeclared(declared map[string]domain.ParameterDescription, values map[string]string) error {
	for name := range values {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
	}
	return nil
}

func apply(sp *domain.StylesheetPreferences, params map[string]string, nodeAttrs map[string]map[string]string) {
	for name, value := range params {
		sp.SetParameter(name, value)
	}
	for nodeID, attrs := range nodeAttrs {
		for name, value := range attrs {
			sp.SetNodeAttribute(nodeID, name, value)
		}
	}
}

// ReloadStructureStylesheet evicts the shared structure description, if an
// invalidator is configured, and re-reads the session's structure preferences.
func (s *Service) ReloadStructureStylesheet(ctx context.Context, m *preferences.Manager) error {
	if m.Unmapped() {
		return preferences.ErrUnmapped
	}
	if s.invalidator != nil && m.Profile() != nil {
		if err := s.invalidator.Invalidate(ctx, KindStructure, m.Profile().StructureStylesheetID); err != nil {
			slog.WarnContext(ctx, "Failed to invalidate structure description", "stylesheet_id", m.Profile().StructureStylesheetID, "error", err)
		}
	}
	return m.ReloadStructureStylesheet(ctx)
}

// EndSession is the session.EndFunc that flushes a session's preferences.
func EndSession(ctx context.Context, id string, attrs *session.Attributes, reason string) {
	v, ok := attrs.Get(ManagerKey)
	if !ok {
		return
	}
	m, ok := v.(*preferences.Manager)
	if !ok {
		return
	}
	if !m.SavesAtLogout() {
		slog.DebugContext(ctx, "Discarding preferences session", "session_id", id, "user_id", m.Identity().UserID, "reason", reason)
		return
	}
	slog.DebugContext(ctx, "Ending preferences session", "session_id", id, "user_id", m.Identity().UserID, "reason", reason)
	m.FinishSession(ctx)
}
