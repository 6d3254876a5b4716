package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pscheid92/portalprefs/internal/domain"
)

func insertID(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int(id), err
}

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

	d.ID, err = insertID(s.db.ExecContext(ctx, `
		INSERT INTO structure_stylesheets (name, description, uri, description_uri, parameters, folder_attributes, channel_attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.Name, d.Description, d.URI, d.DescriptionURI, params, folderAttrs, channelAttrs))
	if err != nil {
		return fmt.Errorf("create structure stylesheet: %w", err)
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

	d.ID, err = insertID(s.db.ExecContext(ctx, `
		INSERT INTO theme_stylesheets (structure_stylesheet_id, name, description, uri, mime_type, serializer_name, parameters, channel_attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.StructureStylesheetID, d.Name, d.Description, d.URI, d.MimeType, d.SerializerName, params, channelAttrs))
	if err != nil {
		return fmt.Errorf("create theme stylesheet: %w", err)
	}
	return nil
}

// CreateProfile inserts p for userID and sets its ID. An empty userID creates
// a system profile.
func (s *Store) CreateProfile(ctx context.Context, userID string, p *domain.Profile) error {
	p.System = userID == ""
	var err error
	p.ID, err = insertID(s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, name, description, system, layout_id, structure_stylesheet_id, theme_stylesheet_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userID, p.Name, p.Description, p.System, p.LayoutID, p.StructureStylesheetID, p.ThemeStylesheetID))
	if err != nil {
		return fmt.Errorf("create profile %q: %w", p.Name, err)
	}
	return nil
}

// MapAgent binds an agent string to a profile for userID, or system-wide when
// userID is empty.
func (s *Store) MapAgent(ctx context.Context, userID string, agent domain.ClientSignature, profileID int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_profiles (user_id, agent, profile_id)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, agent) DO UPDATE SET profile_id = excluded.profile_id
	`, userID, string(agent), profileID)
	if err != nil {
		return fmt.Errorf("map agent: %w", err)
	}
	return nil
}
