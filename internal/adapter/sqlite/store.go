// Package sqlite implements the layout store on an embedded SQLite database
// for single-node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pscheid92/portalprefs/internal/domain"
)

// profileColumns must match the Scan order in scanProfile.
const profileColumns = `p.id, p.name, p.description, p.system, p.layout_id, p.structure_stylesheet_id, p.theme_stylesheet_id`

const (
	kindStructure = "structure"
	kindTheme     = "theme"
)

// Store implements domain.LayoutStore and domain.LayoutRepository backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanProfile(row *sql.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.System, &p.LayoutID, &p.StructureStylesheetID, &p.ThemeStylesheetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) profile(ctx context.Context, what, query string, args ...any) (*domain.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return p, err
}

func (s *Store) GetUserProfile(ctx context.Context, identity domain.Identity, agent domain.ClientSignature) (*domain.Profile, error) {
	return s.profile(ctx, "user profile by agent", `
		SELECT `+profileColumns+`
		FROM agent_profiles ap
		JOIN profiles p ON p.id = ap.profile_id AND p.user_id = ap.user_id
		WHERE ap.user_id = ? AND ap.agent = ?
	`, identity.UserID, string(agent))
}

func (s *Store) GetSystemProfile(ctx context.Context, agent domain.ClientSignature) (*domain.Profile, error) {
	return s.profile(ctx, "system profile by agent", `
		SELECT `+profileColumns+`
		FROM agent_profiles ap
		JOIN profiles p ON p.id = ap.profile_id
		WHERE ap.user_id = '' AND ap.agent = ? AND p.system = 1
	`, string(agent))
}

func (s *Store) GetUserProfileByName(ctx context.Context, identity domain.Identity, name string) (*domain.Profile, error) {
	return s.profile(ctx, "user profile by name",
		`SELECT `+profileColumns+` FROM profiles p WHERE p.user_id = ? AND p.name = ? AND p.system = 0`,
		identity.UserID, name)
}

func (s *Store) GetSystemProfileByName(ctx context.Context, name string) (*domain.Profile, error) {
	return s.profile(ctx, "system profile by name",
		`SELECT `+profileColumns+` FROM profiles p WHERE p.system = 1 AND p.name = ?`, name)
}

// GetPreferences returns ErrPreferencesNotFound when the user has never saved
// preferences for the profile.
func (s *Store) GetPreferences(ctx context.Context, identity domain.Identity, profile *domain.Profile) (*domain.Preferences, error) {
	if profile == nil {
		return nil, domain.ErrPreferencesNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, stylesheet_id, parameters, node_attributes
		FROM stylesheet_preferences
		WHERE user_id = ? AND profile_id = ?
	`, identity.UserID, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	defer rows.Close()

	prefs := domain.NewDefaultPreferences(profile)
	found := false
	for rows.Next() {
		var kind, params, attrs string
		var sp domain.StylesheetPreferences
		if err := rows.Scan(&kind, &sp.StylesheetID, &params, &attrs); err != nil {
			return nil, fmt.Errorf("scan preferences: %w", err)
		}
		if err := decodeJSON(params, &sp.Parameters, attrs, &sp.NodeAttributes); err != nil {
			return nil, fmt.Errorf("decode stylesheet %d preferences: %w", sp.StylesheetID, err)
		}

		switch kind {
		case kindStructure:
			prefs.Structure = &domain.StructureStylesheetPreferences{StylesheetPreferences: sp}
		case kindTheme:
			prefs.Theme = &domain.ThemeStylesheetPreferences{StylesheetPreferences: sp}
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if !found {
		return nil, domain.ErrPreferencesNotFound
	}
	return prefs, nil
}

// PutPreferences writes both stylesheet halves in one transaction.
func (s *Store) PutPreferences(ctx context.Context, identity domain.Identity, prefs *domain.Preferences) error {
	if prefs == nil || prefs.Profile == nil {
		return errors.New("cannot save preferences without a profile")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin preferences transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if prefs.Structure != nil {
		if err := upsertStylesheetPreferences(ctx, tx, identity, prefs.Profile.ID, kindStructure, prefs.Structure.StylesheetPreferences); err != nil {
			return err
		}
	}
	if prefs.Theme != nil {
		if err := upsertStylesheetPreferences(ctx, tx, identity, prefs.Profile.ID, kindTheme, prefs.Theme.StylesheetPreferences); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	return nil
}

func upsertStylesheetPreferences(ctx context.Context, tx *sql.Tx, identity domain.Identity, profileID int, kind string, sp domain.StylesheetPreferences) error {
	params, err := jsonObject(sp.Parameters)
	if err != nil {
		return err
	}
	attrs, err := jsonObject(sp.NodeAttributes)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stylesheet_preferences (user_id, profile_id, kind, stylesheet_id, parameters, node_attributes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, profile_id, kind) DO UPDATE SET
			stylesheet_id = excluded.stylesheet_id,
			parameters = excluded.parameters,
			node_attributes = excluded.node_attributes,
			updated_at = excluded.updated_at
	`, identity.UserID, profileID, kind, sp.StylesheetID, params, attrs, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert %s preferences: %w", kind, err)
	}
	return nil
}

func (s *Store) GetStructureStylesheetPreferences(ctx context.Context, identity domain.Identity, profileID, stylesheetID int) (*domain.StructureStylesheetPreferences, error) {
	var sp domain.StylesheetPreferences
	var params, attrs string
	err := s.db.QueryRowContext(ctx, `
		SELECT stylesheet_id, parameters, node_attributes
		FROM stylesheet_preferences
		WHERE user_id = ? AND profile_id = ? AND kind = 'structure' AND stylesheet_id = ?
	`, identity.UserID, profileID, stylesheetID).Scan(&sp.StylesheetID, &params, &attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get structure stylesheet preferences: %w", err)
	}
	if err := decodeJSON(params, &sp.Parameters, attrs, &sp.NodeAttributes); err != nil {
		return nil, fmt.Errorf("decode stylesheet %d preferences: %w", stylesheetID, err)
	}
	return &domain.StructureStylesheetPreferences{StylesheetPreferences: sp}, nil
}

func (s *Store) GetStructureStylesheetDescription(ctx context.Context, id int) (*domain.StructureStylesheetDescription, error) {
	var d domain.StructureStylesheetDescription
	var params, folderAttrs, channelAttrs string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, uri, description_uri, parameters, folder_attributes, channel_attributes
		FROM structure_stylesheets WHERE id = ?
	`, id).Scan(&d.ID, &d.Name, &d.Description, &d.URI, &d.DescriptionURI, &params, &folderAttrs, &channelAttrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStylesheetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get structure stylesheet: %w", err)
	}
	if err := decodeJSON(params, &d.Parameters, folderAttrs, &d.FolderAttributes, channelAttrs, &d.ChannelAttributes); err != nil {
		return nil, fmt.Errorf("decode structure stylesheet %d: %w", id, err)
	}
	return &d, nil
}

func (s *Store) GetThemeStylesheetDescription(ctx context.Context, id int) (*domain.ThemeStylesheetDescription, error) {
	var d domain.ThemeStylesheetDescription
	var params, channelAttrs string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, structure_stylesheet_id, name, description, uri, mime_type, serializer_name, parameters, channel_attributes
		FROM theme_stylesheets WHERE id = ?
	`, id).Scan(&d.ID, &d.StructureStylesheetID, &d.Name, &d.Description, &d.URI, &d.MimeType, &d.SerializerName, &params, &channelAttrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStylesheetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get theme stylesheet: %w", err)
	}
	if err := decodeJSON(params, &d.Parameters, channelAttrs, &d.ChannelAttributes); err != nil {
		return nil, fmt.Errorf("decode theme stylesheet %d: %w", id, err)
	}
	return &d, nil
}

func (s *Store) GetLayout(ctx context.Context, identity domain.Identity, layoutID int) (*domain.Layout, error) {
	l := domain.Layout{ID: layoutID}
	var nodes string
	err := s.db.QueryRowContext(ctx,
		`SELECT root_id, nodes FROM layouts WHERE user_id = ? AND layout_id = ?`,
		identity.UserID, layoutID).Scan(&l.RootID, &nodes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLayoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get layout: %w", err)
	}
	if err := json.Unmarshal([]byte(nodes), &l.Nodes); err != nil {
		return nil, fmt.Errorf("decode layout %d: %w", layoutID, err)
	}
	return &l, nil
}

func (s *Store) SaveLayout(ctx context.Context, identity domain.Identity, layout *domain.Layout) error {
	nodes, err := json.Marshal(layout.Nodes)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO layouts (user_id, layout_id, root_id, nodes, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, layout_id) DO UPDATE SET
			root_id = excluded.root_id,
			nodes = excluded.nodes,
			updated_at = excluded.updated_at
	`, identity.UserID, layout.ID, layout.RootID, string(nodes), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	return nil
}

// decodeJSON takes (raw, dest) pairs and skips empty columns.
func decodeJSON(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		raw, _ := pairs[i].(string)
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func jsonObject[M ~map[K]V, K comparable, V any](m M) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}
