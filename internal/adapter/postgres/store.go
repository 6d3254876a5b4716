package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/platform/retry"
)

// profileColumns must match the Scan order in scanProfile.
const profileColumns = `p.id, p.name, p.description, p.system, p.layout_id, p.structure_stylesheet_id, p.theme_stylesheet_id`

const (
	kindStructure = "structure"
	kindTheme     = "theme"
)

var defaultWritePolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
}

// RetryRecorder counts retried writes.
type RetryRecorder interface {
	RecordWriteRetry()
}

// Store implements domain.LayoutStore and domain.LayoutRepository backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	policy retry.Policy
}

type StoreOption func(*Store)

func WithRetryRecorder(r RetryRecorder) StoreOption {
	return func(s *Store) {
		s.policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Retrying preferences write", "attempt", attempt, "backoff", backoff, "error", err)
			r.RecordWriteRetry()
		}
	}
}

func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{pool: pool, policy: defaultWritePolicy}
	s.policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Retrying preferences write", "attempt", attempt, "backoff", backoff, "error", err)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.System, &p.LayoutID, &p.StructureStylesheetID, &p.ThemeStylesheetID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetUserProfile(ctx context.Context, identity domain.Identity, agent domain.ClientSignature) (*domain.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM agent_profiles ap
		JOIN profiles p ON p.id = ap.profile_id AND p.user_id = ap.user_id
		WHERE ap.user_id = $1 AND ap.agent = $2
	`, identity.UserID, string(agent)))
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to get user profile by agent: %w", err)
	}
	return p, err
}

func (s *Store) GetSystemProfile(ctx context.Context, agent domain.ClientSignature) (*domain.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM agent_profiles ap
		JOIN profiles p ON p.id = ap.profile_id
		WHERE ap.user_id = '' AND ap.agent = $1 AND p.system
	`, string(agent)))
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to get system profile by agent: %w", err)
	}
	return p, err
}

func (s *Store) GetUserProfileByName(ctx context.Context, identity domain.Identity, name string) (*domain.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles p WHERE p.user_id = $1 AND p.name = $2 AND NOT p.system`,
		identity.UserID, name))
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to get user profile by name: %w", err)
	}
	return p, err
}

func (s *Store) GetSystemProfileByName(ctx context.Context, name string) (*domain.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles p WHERE p.system AND p.name = $1`, name))
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to get system profile by name: %w", err)
	}
	return p, err
}

// GetPreferences returns ErrPreferencesNotFound when the user has never saved
// preferences for the profile. A missing half falls back to the profile's defaults.
func (s *Store) GetPreferences(ctx context.Context, identity domain.Identity, profile *domain.Profile) (*domain.Preferences, error) {
	if profile == nil {
		return nil, domain.ErrPreferencesNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT kind, stylesheet_id, parameters, node_attributes
		FROM stylesheet_preferences
		WHERE user_id = $1 AND profile_id = $2
	`, identity.UserID, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	defer rows.Close()

	prefs := domain.NewDefaultPreferences(profile)
	found := false
	for rows.Next() {
		var kind string
		var sp domain.StylesheetPreferences
		var params, attrs []byte
		if err := rows.Scan(&kind, &sp.StylesheetID, &params, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan preferences: %w", err)
		}
		if err := decodeStylesheetPreferences(&sp, params, attrs); err != nil {
			return nil, err
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
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if !found {
		return nil, domain.ErrPreferencesNotFound
	}
	return prefs, nil
}

// PutPreferences writes both stylesheet halves in one serializable transaction,
// retrying on serialization failures and deadlocks.
func (s *Store) PutPreferences(ctx context.Context, identity domain.Identity, prefs *domain.Preferences) error {
	if prefs == nil || prefs.Profile == nil {
		return errors.New("cannot save preferences without a profile")
	}

	err := retry.DoVoid(ctx, s.policy, classifyWriteError, func(ctx context.Context) error {
		return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
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
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func upsertStylesheetPreferences(ctx context.Context, tx pgx.Tx, identity domain.Identity, profileID int, kind string, sp domain.StylesheetPreferences) error {
	params, attrs, err := encodeStylesheetPreferences(sp)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO stylesheet_preferences (user_id, profile_id, kind, stylesheet_id, parameters, node_attributes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id, profile_id, kind) DO UPDATE SET
			stylesheet_id = EXCLUDED.stylesheet_id,
			parameters = EXCLUDED.parameters,
			node_attributes = EXCLUDED.node_attributes,
			updated_at = NOW()
	`, identity.UserID, profileID, kind, sp.StylesheetID, params, attrs)
	if err != nil {
		return fmt.Errorf("failed to upsert %s preferences: %w", kind, err)
	}
	return nil
}

func classifyWriteError(err error) retry.Action {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return retry.Retry
		}
	}
	return retry.Stop
}

func (s *Store) GetStructureStylesheetPreferences(ctx context.Context, identity domain.Identity, profileID, stylesheetID int) (*domain.StructureStylesheetPreferences, error) {
	var sp domain.StylesheetPreferences
	var params, attrs []byte
	err := s.pool.QueryRow(ctx, `
		SELECT stylesheet_id, parameters, node_attributes
		FROM stylesheet_preferences
		WHERE user_id = $1 AND profile_id = $2 AND kind = 'structure' AND stylesheet_id = $3
	`, identity.UserID, profileID, stylesheetID).Scan(&sp.StylesheetID, &params, &attrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get structure stylesheet preferences: %w", err)
	}
	if err := decodeStylesheetPreferences(&sp, params, attrs); err != nil {
		return nil, err
	}
	return &domain.StructureStylesheetPreferences{StylesheetPreferences: sp}, nil
}

func (s *Store) GetStructureStylesheetDescription(ctx context.Context, id int) (*domain.StructureStylesheetDescription, error) {
	var d domain.StructureStylesheetDescription
	var params, folderAttrs, channelAttrs []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, uri, description_uri, parameters, folder_attributes, channel_attributes
		FROM structure_stylesheets WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Description, &d.URI, &d.DescriptionURI, &params, &folderAttrs, &channelAttrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStylesheetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get structure stylesheet: %w", err)
	}
	if err := unmarshalColumns(
		column{params, &d.Parameters},
		column{folderAttrs, &d.FolderAttributes},
		column{channelAttrs, &d.ChannelAttributes},
	); err != nil {
		return nil, fmt.Errorf("failed to decode structure stylesheet %d: %w", id, err)
	}
	return &d, nil
}

func (s *Store) GetThemeStylesheetDescription(ctx context.Context, id int) (*domain.ThemeStylesheetDescription, error) {
	var d domain.ThemeStylesheetDescription
	var params, channelAttrs []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, structure_stylesheet_id, name, description, uri, mime_type, serializer_name, parameters, channel_attributes
		FROM theme_stylesheets WHERE id = $1
	`, id).Scan(&d.ID, &d.StructureStylesheetID, &d.Name, &d.Description, &d.URI, &d.MimeType, &d.SerializerName, &params, &channelAttrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStylesheetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme stylesheet: %w", err)
	}
	if err := unmarshalColumns(
		column{params, &d.Parameters},
		column{channelAttrs, &d.ChannelAttributes},
	); err != nil {
		return nil, fmt.Errorf("failed to decode theme stylesheet %d: %w", id, err)
	}
	return &d, nil
}

func (s *Store) GetLayout(ctx context.Context, identity domain.Identity, layoutID int) (*domain.Layout, error) {
	l := domain.Layout{ID: layoutID}
	var nodes []byte
	err := s.pool.QueryRow(ctx,
		`SELECT root_id, nodes FROM layouts WHERE user_id = $1 AND layout_id = $2`,
		identity.UserID, layoutID).Scan(&l.RootID, &nodes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLayoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get layout: %w", err)
	}
	if err := json.Unmarshal(nodes, &l.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode layout %d: %w", layoutID, err)
	}
	return &l, nil
}

func (s *Store) SaveLayout(ctx context.Context, identity domain.Identity, layout *domain.Layout) error {
	nodes, err := json.Marshal(layout.Nodes)
	if err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO layouts (user_id, layout_id, root_id, nodes, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, layout_id) DO UPDATE SET
			root_id = EXCLUDED.root_id,
			nodes = EXCLUDED.nodes,
			updated_at = NOW()
	`, identity.UserID, layout.ID, layout.RootID, string(nodes))
	if err != nil {
		return fmt.Errorf("failed to save layout: %w", err)
	}
	return nil
}

type column struct {
	raw  []byte
	dest any
}

func unmarshalColumns(cols ...column) error {
	for _, c := range cols {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dest); err != nil {
			return err
		}
	}
	return nil
}

func decodeStylesheetPreferences(sp *domain.StylesheetPreferences, params, attrs []byte) error {
	if err := unmarshalColumns(column{params, &sp.Parameters}, column{attrs, &sp.NodeAttributes}); err != nil {
		return fmt.Errorf("failed to decode stylesheet %d preferences: %w", sp.StylesheetID, err)
	}
	return nil
}

func encodeStylesheetPreferences(sp domain.StylesheetPreferences) (params, attrs string, err error) {
	if params, err = jsonObject(sp.Parameters); err != nil {
		return "", "", err
	}
	if attrs, err = jsonObject(sp.NodeAttributes); err != nil {
		return "", "", err
	}
	return params, attrs, nil
}

// jsonObject encodes m, mapping a nil map to an empty object.
func jsonObject[M ~map[K]V, K comparable, V any](m M) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(b), nil
}
