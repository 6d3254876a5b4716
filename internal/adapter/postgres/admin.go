package postgres

import (
	"context"
	"fmt"

	"github.com/pscheid92/portalprefs/internal/domain"
)

// CreateStructureStylesheet inserts d and sets its ID.
func (s *Store) CreateStructureStylesheet(ctx context.Context, d *domain.StructureStylesheetDescription) error {
	params, err := jsonObject(d.Parameters)
	if err != nil {
		return err
	}
	folderAttrs, err := jsonObject(d.FolderAttributes)
	if err != nil {
		return err
	}
	channelAttrs, err := jsonObject(d.ChannelAttributes)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO structure_stylesheets (name, description, uri, description_uri, parameters, folder_attributes, channel_attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, d.Name, d.Description, d.URI, d.DescriptionURI, params, folderAttrs, channelAttrs).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to create structure stylesheet: %w", err)
	}
	return nil
}

// CreateThemeStylesheet inserts d and sets its ID.
func (s *Store) CreateThemeStylesheet(ctx context.Context, d *domain.ThemeStylesheetDescription) error {
	params, err := jsonObject(d.Parameters)
	if err != nil {
		return err
	}
	channelAttrs, err := jsonObject(d.ChannelAttributes)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO theme_stylesheets (structure_stylesheet_id, name, description, uri, mime_type, serializer_name, parameters, channel_attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, d.StructureStylesheetID, d.Name, d.Description, d.URI, d.MimeType, d.SerializerName, params, channelAttrs).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to create theme stylesheet: %w", err)
	}
	return nil
}

// CreateProfile inserts p for userID and sets its ID. An empty userID creates
// a system profile.
func (s *Store) CreateProfile(ctx context.Context, userID string, p *domain.Profile) error {
	p.System = userID == ""
	err := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (user_id, name, description, system, layout_id, structure_stylesheet_id, theme_stylesheet_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, userID, p.Name, p.Description, p.System, p.LayoutID, p.StructureStylesheetID, p.ThemeStylesheetID).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create profile %q: %w", p.Name, err)
	}
	return nil
}

// MapAgent binds an agent string to a profile for userID, or system-wide when
// userID is empty.
func (s *Store) MapAgent(ctx context.Context, userID string, agent domain.ClientSignature, profileID int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_profiles (user_id, agent, profile_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, agent) DO UPDATE SET profile_id = EXCLUDED.profile_id
	`, userID, string(agent), profileID)
	if err != nil {
		return fmt.Errorf("failed to map agent: %w", err)
	}
	return nil
}
