package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/portalprefs/internal/app"
	"github.com/pscheid92/portalprefs/internal/domain"
	apperrors "github.com/pscheid92/portalprefs/internal/platform/errors"
)

type profileResponse struct {
	ID                    int      `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description,omitempty"`
	System                bool     `json:"system"`
	LayoutID              int      `json:"layout_id"`
	StructureStylesheetID int      `json:"structure_stylesheet_id"`
	ThemeStylesheetID     int      `json:"theme_stylesheet_id"`
	Locales               []string `json:"locales,omitempty"`
}

type preferencesResponse struct {
	Profile   profileResponse              `json:"profile"`
	Structure domain.StylesheetPreferences `json:"structure"`
	Theme     domain.StylesheetPreferences `json:"theme"`
}

type layoutNodeResponse struct {
	*domain.LayoutNode
	LayoutID int `json:"layout_id"`
}

func newProfileResponse(p *domain.Profile) profileResponse {
	r := profileResponse{
		ID:                    p.ID,
		Name:                  p.Name,
		Description:           p.Description,
		System:                p.System,
		LayoutID:              p.LayoutID,
		StructureStylesheetID: p.StructureStylesheetID,
		ThemeStylesheetID:     p.ThemeStylesheetID,
	}
	for _, tag := range p.Locales {
		r.Locales = append(r.Locales, tag.String())
	}
	return r
}

func writeJSON(c echo.Context, status int, v any) error {
	if err := c.JSON(status, v); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

func (s *Server) handleGetProfile(c echo.Context) error {
	return writeJSON(c, http.StatusOK, newProfileResponse(manager(c).Profile()))
}

func (s *Server) handleGetPreferences(c echo.Context) error {
	prefs := manager(c).PreferencesCopy()

	resp := preferencesResponse{Profile: newProfileResponse(prefs.Profile)}
	if prefs.Structure != nil {
		resp.Structure = prefs.Structure.StylesheetPreferences
	}
	if prefs.Theme != nil {
		resp.Theme = prefs.Theme.StylesheetPreferences
	}
	return writeJSON(c, http.StatusOK, resp)
}

type switchProfileRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSwitchProfile(c echo.Context) error {
	var req switchProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperrors.ValidationError("profile name is required")
	}

	m := manager(c)
	if err := s.app.SwitchProfile(c.Request().Context(), m, req.Name); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newProfileResponse(m.Profile()))
}

func (s *Server) handleUpdateStylesheets(c echo.Context) error {
	var req app.StylesheetUpdate
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if err := s.app.UpdateStylesheetParameters(c.Request().Context(), manager(c), req); err != nil {
		return err
	}
	return s.handleGetPreferences(c)
}

func (s *Server) handleStructureStylesheet(c echo.Context) error {
	desc, err := manager(c).StructureStylesheetDescription(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, desc)
}

func (s *Server) handleThemeStylesheet(c echo.Context) error {
	desc, err := manager(c).ThemeStylesheetDescription(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, desc)
}

func (s *Server) handleReloadStructureStylesheet(c echo.Context) error {
	if err := s.app.ReloadStructureStylesheet(c.Request().Context(), manager(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetLayoutNode(c echo.Context) error {
	lm := manager(c).LayoutManager()
	node, ok := lm.Node(c.Param("id"))
	if !ok {
		return domain.ErrNodeNotFound
	}
	return writeJSON(c, http.StatusOK, layoutNodeResponse{LayoutNode: node, LayoutID: lm.LayoutID()})
}

type addLayoutNodeRequest struct {
	ParentID         string          `json:"parent_id"`
	ID               string          `json:"id"`
	Type             domain.NodeType `json:"type"`
	Name             string          `json:"name"`
	ChannelPublishID string          `json:"channel_publish_id"`
}

func (s *Server) handleAddLayoutNode(c echo.Context) error {
	var req addLayoutNodeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.ParentID == "" {
		return apperrors.ValidationError("parent_id is required")
	}
	if req.Type != domain.NodeTypeFolder && req.Type != domain.NodeTypeChannel {
		return apperrors.ValidationError("type must be folder or channel").WithField("type", string(req.Type))
	}
	if req.Type == domain.NodeTypeFolder && req.ChannelPublishID != "" {
		return apperrors.ValidationError("channel_publish_id is only valid for channels")
	}

	m := manager(c)
	node, err := s.app.AddLayoutNode(c.Request().Context(), m, req.ParentID, domain.LayoutNode{
		ID:               req.ID,
		Type:             req.Type,
		Name:             req.Name,
		ChannelPublishID: req.ChannelPublishID,
	})
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, layoutNodeResponse{LayoutNode: node, LayoutID: m.LayoutManager().LayoutID()})
}

func (s *Server) handleRemoveLayoutNode(c echo.Context) error {
	if err := s.app.RemoveLayoutNode(c.Request().Context(), manager(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleUnmapped is the landing page for clients without a profile.
func (s *Server) handleUnmapped(c echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{
		"status":     "unmapped",
		"user_agent": string(domain.NormalizeClientSignature(c.Request().UserAgent())),
		"message":    "no profile is configured for this client",
	})
}
