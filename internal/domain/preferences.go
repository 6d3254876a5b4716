package domain

import "maps"

// StylesheetPreferences holds a user's parameter choices for one stylesheet,
// plus per-layout-node attribute overrides keyed by node id.
type StylesheetPreferences struct {
	StylesheetID   int                          `json:"stylesheet_id"`
	Parameters     map[string]string            `json:"parameters,omitempty"`
	NodeAttributes map[string]map[string]string `json:"node_attributes,omitempty"`
}

type StructureStylesheetPreferences struct {
	StylesheetPreferences
}

type ThemeStylesheetPreferences struct {
	StylesheetPreferences
}

// Preferences is the session-held aggregate of a Profile and its stylesheet preferences.
type Preferences struct {
	Profile   *Profile
	Structure *StructureStylesheetPreferences
	Theme     *ThemeStylesheetPreferences
}

// NewDefaultPreferences seeds empty preferences from the profile's stylesheet ids.
func NewDefaultPreferences(profile *Profile) *Preferences {
	p := &Preferences{Profile: profile}
	if profile != nil {
		p.Structure = &StructureStylesheetPreferences{StylesheetPreferences{StylesheetID: profile.StructureStylesheetID}}
		p.Theme = &ThemeStylesheetPreferences{StylesheetPreferences{StylesheetID: profile.ThemeStylesheetID}}
	}
	return p
}

// Clone returns a deep copy that shares no maps or pointers with p.
func (p *Preferences) Clone() *Preferences {
	if p == nil {
		return nil
	}
	c := &Preferences{Profile: p.Profile.Clone()}
	if p.Structure != nil {
		c.Structure = &StructureStylesheetPreferences{p.Structure.clone()}
	}
	if p.Theme != nil {
		c.Theme = &ThemeStylesheetPreferences{p.Theme.clone()}
	}
	return c
}

// SetParameter records a stylesheet parameter value.
func (s *StylesheetPreferences) SetParameter(name, value string) {
	if s.Parameters == nil {
		s.Parameters = make(map[string]string)
	}
	s.Parameters[name] = value
}

// SetNodeAttribute records an attribute override for one layout node.
func (s *StylesheetPreferences) SetNodeAttribute(nodeID, name, value string) {
	if s.NodeAttributes == nil {
		s.NodeAttributes = make(map[string]map[string]string)
	}
	attrs, ok := s.NodeAttributes[nodeID]
	if !ok {
		attrs = make(map[string]string)
		s.NodeAttributes[nodeID] = attrs
	}
	attrs[name] = value
}

func (s StylesheetPreferences) clone() StylesheetPreferences {
	c := StylesheetPreferences{
		StylesheetID: s.StylesheetID,
		Parameters:   maps.Clone(s.Parameters),
	}
	if s.NodeAttributes != nil {
		c.NodeAttributes = make(map[string]map[string]string, len(s.NodeAttributes))
		for id, attrs := range s.NodeAttributes {
			c.NodeAttributes[id] = maps.Clone(attrs)
		}
	}
	return c
}
