package preferences

import (
	"context"
	"errors"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/profile"
)

// --- Mock implementations ---

type mockStore struct {
	getPreferencesFn    func(ctx context.Context, identity domain.Identity, p *domain.Profile) (*domain.Preferences, error)
	putPreferencesFn    func(ctx context.Context, identity domain.Identity, prefs *domain.Preferences) error
	getStructurePrefsFn func(ctx context.Context, identity domain.Identity, profileID, stylesheetID int) (*domain.StructureStylesheetPreferences, error)
	structureDescFn     func(ctx context.Context, id int) (*domain.StructureStylesheetDescription, error)
	themeDescFn         func(ctx context.Context, id int) (*domain.ThemeStylesheetDescription, error)

	getPreferencesCalls int
	putPreferencesCalls int
	structureDescCalls  int
	themeDescCalls      int
}

func (m *mockStore) GetUserProfile(context.Context, domain.Identity, domain.ClientSignature) (*domain.Profile, error) {
	return nil, domain.ErrProfileNotFound
}

func (m *mockStore) GetSystemProfile(context.Context, domain.ClientSignature) (*domain.Profile, error) {
	return nil, domain.ErrProfileNotFound
}

func (m *mockStore) GetUserProfileByName(context.Context, domain.Identity, string) (*domain.Profile, error) {
	return nil, domain.ErrProfileNotFound
}

func (m *mockStore) GetSystemProfileByName(context.Context, string) (*domain.Profile, error) {
	return nil, domain.ErrProfileNotFound
}

func (m *mockStore) GetPreferences(ctx context.Context, identity domain.Identity, p *domain.Profile) (*domain.Preferences, error) {
	m.getPreferencesCalls++
	if m.getPreferencesFn != nil {
		return m.getPreferencesFn(ctx, identity, p)
	}
	return nil, domain.ErrPreferencesNotFound
}

func (m *mockStore) PutPreferences(ctx context.Context, identity domain.Identity, prefs *domain.Preferences) error {
	m.putPreferencesCalls++
	if m.putPreferencesFn != nil {
		return m.putPreferencesFn(ctx, identity, prefs)
	}
	return nil
}

func (m *mockStore) GetStructureStylesheetPreferences(ctx context.Context, identity domain.Identity, profileID, stylesheetID int) (*domain.StructureStylesheetPreferences, error) {
	if m.getStructurePrefsFn != nil {
		return m.getStructurePrefsFn(ctx, identity, profileID, stylesheetID)
	}
	return nil, domain.ErrPreferencesNotFound
}

func (m *mockStore) GetStructureStylesheetDescription(ctx context.Context, id int) (*domain.StructureStylesheetDescription, error) {
	m.structureDescCalls++
	if m.structureDescFn != nil {
		return m.structureDescFn(ctx, id)
	}
	return &domain.StructureStylesheetDescription{ID: id}, nil
}

func (m *mockStore) GetThemeStylesheetDescription(ctx context.Context, id int) (*domain.ThemeStylesheetDescription, error) {
	m.themeDescCalls++
	if m.themeDescFn != nil {
		return m.themeDescFn(ctx, id)
	}
	return &domain.ThemeStylesheetDescription{ID: id}, nil
}

type mockResolver struct {
	result profile.Result
	err    error
}

func (m *mockResolver) Resolve(context.Context, domain.Identity, domain.RequestContext) (profile.Result, error) {
	return m.result, m.err
}

func resolvedTo(p *domain.Profile) *mockResolver {
	return &mockResolver{result: profile.Result{Profile: p, Step: profile.StepSystemSignature}}
}

type fakeLayoutManager struct {
	identity domain.Identity
	layoutID int
	nodes    map[string]*domain.LayoutNode
	saveErr  error
	saves    int
}

func (f *fakeLayoutManager) Identity() domain.Identity { return f.identity }
func (f *fakeLayoutManager) LayoutID() int             { return f.layoutID }

func (f *fakeLayoutManager) Node(id string) (*domain.LayoutNode, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

func (f *fakeLayoutManager) AddNode(string, domain.LayoutNode) error {
	return errors.New("not implemented")
}

func (f *fakeLayoutManager) RemoveNode(string) error {
	return errors.New("not implemented")
}

func (f *fakeLayoutManager) SaveLayout(context.Context) error {
	f.saves++
	return f.saveErr
}

type mockLayouts struct {
	newFn func(ctx context.Context, identity domain.Identity, p *domain.Profile) (domain.LayoutManager, error)
	built []*domain.Profile
}

func (m *mockLayouts) NewLayoutManager(ctx context.Context, identity domain.Identity, p *domain.Profile) (domain.LayoutManager, error) {
	m.built = append(m.built, p)
	if m.newFn != nil {
		return m.newFn(ctx, identity, p)
	}
	return &fakeLayoutManager{identity: identity, layoutID: p.LayoutID}, nil
}

type mapAttrs map[string]any

func (a mapAttrs) Get(key string) (any, bool) {
	v, ok := a[key]
	return v, ok
}

func (a mapAttrs) Set(key string, value any) { a[key] = value }
func (a mapAttrs) Remove(key string)         { delete(a, key) }

type mockRecorder struct {
	populations []string
	transitions []string
}

func (m *mockRecorder) RecordPopulation(source string)  { m.populations = append(m.populations, source) }
func (m *mockRecorder) RecordTransition(outcome string) { m.transitions = append(m.transitions, outcome) }
