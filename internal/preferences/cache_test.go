package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPolicyDegradesToDefaults(t *testing.T) {
	assert.Equal(t, DegradeToDefaults, ReadPolicy)
	assert.Equal(t, FailOperation, TransitionPolicy)
	assert.NotEqual(t, ReadPolicy, TransitionPolicy)
}

func TestPopulate_Idempotent(t *testing.T) {
	store := &mockStore{}
	m := newManager(t, store, mapAttrs{})

	first := m.Preferences()
	second := m.Populate(context.Background(), defaultProfile)
	third := m.Populate(context.Background(), defaultProfile)

	assert.Same(t, first, second)
	assert.Same(t, second, third)
	assert.Equal(t, 1, store.getPreferencesCalls, "store is only read on first population")
}

func TestPopulate_SessionSlotWins(t *testing.T) {
	sessionPrefs := domain.NewDefaultPreferences(mobileProfile)
	sessionPrefs.Theme.SetParameter("skin", "edited-in-session")

	store := &mockStore{getPreferencesFn: func(context.Context, domain.Identity, *domain.Profile) (*domain.Preferences, error) {
		stored := domain.NewDefaultPreferences(mobileProfile)
		stored.Theme.SetParameter("skin", "stored")
		return stored, nil
	}}
	layouts := &mockLayouts{}
	rec := &mockRecorder{}
	attrs := mapAttrs{CacheKey: sessionPrefs}

	m := newManager(t, store, attrs, func(d *Deps) {
		d.Resolver = resolvedTo(mobileProfile)
		d.Layouts = layouts
		d.Recorder = rec
	})

	assert.Same(t, sessionPrefs, m.Preferences())
	assert.Equal(t, "edited-in-session", m.Preferences().Theme.Parameters["skin"])
	assert.Zero(t, store.getPreferencesCalls, "store must not be consulted")
	assert.Equal(t, []string{SourceSession}, rec.populations)
	require.Len(t, layouts.built, 1)
	assert.Equal(t, "mobile", layouts.built[0].Name)
}

func TestPopulate_SessionProfileDiffersFromResolution(t *testing.T) {
	attrs := mapAttrs{CacheKey: domain.NewDefaultPreferences(mobileProfile)}
	layouts := &mockLayouts{}

	m := newManager(t, &mockStore{}, attrs, func(d *Deps) { d.Layouts = layouts })

	assert.Equal(t, "mobile", m.Profile().Name)
	assert.Equal(t, 200, m.LayoutManager().LayoutID(), "layout follows the session preferences")
}

func TestPopulate_StoreHit(t *testing.T) {
	store := &mockStore{getPreferencesFn: func(_ context.Context, identity domain.Identity, p *domain.Profile) (*domain.Preferences, error) {
		assert.Equal(t, u1, identity)
		assert.Equal(t, "default", p.Name)
		prefs := domain.NewDefaultPreferences(&domain.Profile{Name: "stale copy"})
		prefs.Structure.SetParameter("columns", "2")
		return prefs, nil
	}}
	rec := &mockRecorder{}

	m := newManager(t, store, mapAttrs{}, func(d *Deps) { d.Recorder = rec })

	assert.Equal(t, "2", m.Preferences().Structure.Parameters["columns"])
	assert.Same(t, defaultProfile, m.Profile(), "stored preferences are bound to the resolved profile")
	assert.Equal(t, []string{SourceStore}, rec.populations)
}

func TestPopulate_StoreFailureDegradesToDefaults(t *testing.T) {
	for name, storeErr := range map[string]error{
		"not found":     domain.ErrPreferencesNotFound,
		"store failure": errors.New("relation does not exist"),
	} {
		t.Run(name, func(t *testing.T) {
			store := &mockStore{getPreferencesFn: func(context.Context, domain.Identity, *domain.Profile) (*domain.Preferences, error) {
				return nil, storeErr
			}}
			attrs := mapAttrs{}

			m := newManager(t, store, attrs)

			require.NotNil(t, m.Preferences())
			assert.Same(t, defaultProfile, m.Profile())
			assert.Equal(t, 10, m.Preferences().Structure.StylesheetID)
			assert.Equal(t, 20, m.Preferences().Theme.StylesheetID)
			assert.Same(t, m.Preferences(), attrs[CacheKey])
		})
	}
}

func TestPopulate_NilFromStoreDegradesToDefaults(t *testing.T) {
	store := &mockStore{getPreferencesFn: func(context.Context, domain.Identity, *domain.Profile) (*domain.Preferences, error) {
		return nil, nil
	}}
	m := newManager(t, store, mapAttrs{})
	assert.Equal(t, 10, m.Preferences().Structure.StylesheetID)
}

func TestPopulate_DiscardsUnusableSlot(t *testing.T) {
	attrs := mapAttrs{CacheKey: "garbage"}
	store := &mockStore{}

	m := newManager(t, store, attrs)

	assert.Equal(t, 1, store.getPreferencesCalls)
	assert.Same(t, m.Preferences(), attrs[CacheKey])
}

func TestStylesheetDescriptions_Memoized(t *testing.T) {
	store := &mockStore{}
	m := newManager(t, store, mapAttrs{})
	ctx := context.Background()

	s1, err := m.StructureStylesheetDescription(ctx)
	require.NoError(t, err)
	s2, err := m.StructureStylesheetDescription(ctx)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 10, s1.ID)
	assert.Equal(t, 1, store.structureDescCalls)

	th1, err := m.ThemeStylesheetDescription(ctx)
	require.NoError(t, err)
	th2, err := m.ThemeStylesheetDescription(ctx)
	require.NoError(t, err)
	assert.Same(t, th1, th2)
	assert.Equal(t, 20, th1.ID)
	assert.Equal(t, 1, store.themeDescCalls)
}

func TestStylesheetDescriptions_InvalidatedByStylesheetChange(t *testing.T) {
	store := &mockStore{}
	m := newManager(t, store, mapAttrs{})
	ctx := context.Background()

	_, err := m.StructureStylesheetDescription(ctx)
	require.NoError(t, err)
	_, err = m.ThemeStylesheetDescription(ctx)
	require.NoError(t, err)

	// tablet shares the theme stylesheet but not the structure stylesheet
	require.NoError(t, m.SetLayoutAndPreferences(ctx, nil, domain.NewDefaultPreferences(tabletProfile)))

	s, err := m.StructureStylesheetDescription(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, s.ID)
	assert.Equal(t, 2, store.structureDescCalls)

	_, err = m.ThemeStylesheetDescription(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.themeDescCalls, "unchanged theme id keeps its memo")
}

func TestStylesheetDescriptions_Errors(t *testing.T) {
	store := &mockStore{structureDescFn: func(context.Context, int) (*domain.StructureStylesheetDescription, error) {
		return nil, domain.ErrStylesheetNotFound
	}}
	m := newManager(t, store, mapAttrs{})

	_, err := m.StructureStylesheetDescription(context.Background())
	assert.ErrorIs(t, err, domain.ErrStylesheetNotFound)

	_, err = m.StructureStylesheetDescription(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, store.structureDescCalls, "failures are not memoized")

	unmapped := &Manager{unmapped: true}
	_, err = unmapped.ThemeStylesheetDescription(context.Background())
	assert.ErrorIs(t, err, ErrUnmapped)
}

func TestReloadStructureStylesheet(t *testing.T) {
	t.Run("replaces structure preferences", func(t *testing.T) {
		reloaded := &domain.StructureStylesheetPreferences{StylesheetPreferences: domain.StylesheetPreferences{
			StylesheetID: 10,
			Parameters:   map[string]string{"columns": "5"},
		}}
		store := &mockStore{getStructurePrefsFn: func(_ context.Context, _ domain.Identity, profileID, stylesheetID int) (*domain.StructureStylesheetPreferences, error) {
			assert.Equal(t, 1, profileID)
			assert.Equal(t, 10, stylesheetID)
			return reloaded, nil
		}}
		attrs := mapAttrs{}
		m := newManager(t, store, attrs)

		require.NoError(t, m.ReloadStructureStylesheet(context.Background()))
		assert.Same(t, reloaded, m.Preferences().Structure)
		assert.Same(t, m.Preferences(), attrs[CacheKey])
	})

	t.Run("nothing stored keeps current", func(t *testing.T) {
		m := newManager(t, &mockStore{}, mapAttrs{})
		before := m.Preferences().Structure

		require.NoError(t, m.ReloadStructureStylesheet(context.Background()))
		assert.Same(t, before, m.Preferences().Structure)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		boom := errors.New("timeout")
		store := &mockStore{getStructurePrefsFn: func(context.Context, domain.Identity, int, int) (*domain.StructureStylesheetPreferences, error) {
			return nil, boom
		}}
		m := newManager(t, store, mapAttrs{})
		before := m.Preferences().Structure

		assert.ErrorIs(t, m.ReloadStructureStylesheet(context.Background()), boom)
		assert.Same(t, before, m.Preferences().Structure)
	})

	t.Run("unmapped", func(t *testing.T) {
		assert.ErrorIs(t, (&Manager{unmapped: true}).ReloadStructureStylesheet(context.Background()), ErrUnmapped)
	})
}
