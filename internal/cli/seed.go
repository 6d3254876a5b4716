package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pscheid92/portalprefs/internal/adapter/storage"
	"github.com/pscheid92/portalprefs/internal/domain"
)

// seedFile is the YAML layout accepted by "prefsctl seed". Stylesheets are
// referenced by key within the file; ids are assigned by the store.
//
//	structure_stylesheets:
//	  - key: tabs
//	    name: Tabs and columns
//	    uri: stylesheets/tab-column/tab-column.xsl
//	    parameters:
//	      activeTab: {default: "1"}
//	theme_stylesheets:
//	  - key: html
//	    structure: tabs
//	    name: HTML columns
//	    uri: stylesheets/tab-column/html.xsl
//	    mime_type: text/html
//	    serializer: HTML
//	profiles:
//	  - name: default
//	    layout_id: 1
//	    structure: tabs
//	    theme: html
//	    agents: ["null"]
type seedFile struct {
	StructureStylesheets []seedStructure `yaml:"structure_stylesheets"`
	ThemeStylesheets     []seedTheme     `yaml:"theme_stylesheets"`
	Profiles             []seedProfile   `yaml:"profiles"`
}

type seedParameter struct {
	Default     string `yaml:"default"`
	Description string `yaml:"description"`
}

type seedStructure struct {
	Key               string                   `yaml:"key"`
	Name              string                   `yaml:"name"`
	Description       string                   `yaml:"description"`
	URI               string                   `yaml:"uri"`
	DescriptionURI    string                   `yaml:"description_uri"`
	Parameters        map[string]seedParameter `yaml:"parameters"`
	FolderAttributes  map[string]seedParameter `yaml:"folder_attributes"`
	ChannelAttributes map[string]seedParameter `yaml:"channel_attributes"`
}

type seedTheme struct {
	Key               string                   `yaml:"key"`
	Structure         string                   `yaml:"structure"`
	Name              string                   `yaml:"name"`
	Description       string                   `yaml:"description"`
	URI               string                   `yaml:"uri"`
	MimeType          string                   `yaml:"mime_type"`
	Serializer        string                   `yaml:"serializer"`
	Parameters        map[string]seedParameter `yaml:"parameters"`
	ChannelAttributes map[string]seedParameter `yaml:"channel_attributes"`
}

type seedProfile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	User        string   `yaml:"user"` // empty for a system profile
	LayoutID    int      `yaml:"layout_id"`
	Structure   string   `yaml:"structure"`
	Theme       string   `yaml:"theme"`
	Agents      []string `yaml:"agents"`
}

type seedSummary struct {
	StructureStylesheets int `json:"structure_stylesheets"`
	ThemeStylesheets     int `json:"theme_stylesheets"`
	Profiles             int `json:"profiles"`
	Agents               int `json:"agents"`
}

func newSeedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "seed <file>",
		GroupID: "store",
		Short:   "Load stylesheets, profiles and agent mappings from YAML",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readSeedFile(args[0])
			if err != nil {
				return err
			}

			store, closeFn, err := g.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			sum, err := applySeed(cmd.Context(), store, f)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				return outputJSON(w, sum)
			}
			printSuccess(w, "Seed applied")
			printLabelValue(w, "Structure stylesheets", strconv.Itoa(sum.StructureStylesheets))
			printLabelValue(w, "Theme stylesheets", strconv.Itoa(sum.ThemeStylesheets))
			printLabelValue(w, "Profiles", strconv.Itoa(sum.Profiles))
			printLabelValue(w, "Agent mappings", strconv.Itoa(sum.Agents))
			return nil
		},
	}
}

func readSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &f, nil
}

// applySeed inserts everything in f. References are checked before anything
// is written.
func applySeed(ctx context.Context, store storage.Backend, f *seedFile) (seedSummary, error) {
	var sum seedSummary
	if err := checkSeedReferences(f); err != nil {
		return sum, err
	}

	structureIDs := make(map[string]int, len(f.StructureStylesheets))
	for _, s := range f.StructureStylesheets {
		d := &domain.StructureStylesheetDescription{
			Name:              s.Name,
			Description:       s.Description,
			URI:               s.URI,
			DescriptionURI:    s.DescriptionURI,
			Parameters:        parameterDescriptions(s.Parameters),
			FolderAttributes:  parameterDescriptions(s.FolderAttributes),
			ChannelAttributes: parameterDescriptions(s.ChannelAttributes),
		}
		if err := store.CreateStructureStylesheet(ctx, d); err != nil {
			return sum, fmt.Errorf("structure stylesheet %q: %w", s.Key, err)
		}
		structureIDs[s.Key] = d.ID
		sum.StructureStylesheets++
	}

	themeIDs := make(map[string]int, len(f.ThemeStylesheets))
	for _, t := range f.ThemeStylesheets {
		d := &domain.ThemeStylesheetDescription{
			StructureStylesheetID: structureIDs[t.Structure],
			Name:                  t.Name,
			Description:           t.Description,
			URI:                   t.URI,
			MimeType:              t.MimeType,
			SerializerName:        t.Serializer,
			Parameters:            parameterDescriptions(t.Parameters),
			ChannelAttributes:     parameterDescriptions(t.ChannelAttributes),
		}
		if err := store.CreateThemeStylesheet(ctx, d); err != nil {
			return sum, fmt.Errorf("theme stylesheet %q: %w", t.Key, err)
		}
		themeIDs[t.Key] = d.ID
		sum.ThemeStylesheets++
	}

	for _, p := range f.Profiles {
		profile := &domain.Profile{
			Name:                  p.Name,
			Description:           p.Description,
			LayoutID:              p.LayoutID,
			StructureStylesheetID: structureIDs[p.Structure],
			ThemeStylesheetID:     themeIDs[p.Theme],
		}
		if err := store.CreateProfile(ctx, p.User, profile); err != nil {
			return sum, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		sum.Profiles++

		for _, agent := range p.Agents {
			if err := store.MapAgent(ctx, p.User, domain.NormalizeClientSignature(agent), profile.ID); err != nil {
				return sum, fmt.Errorf("profile %q agent %q: %w", p.Name, agent, err)
			}
			sum.Agents++
		}
	}
	return sum, nil
}

func checkSeedReferences(f *seedFile) error {
	structures := make(map[string]bool)
	for _, s := range f.StructureStylesheets {
		if s.Key == "" {
			return fmt.Errorf("structure stylesheet %q has no key", s.Name)
		}
		structures[s.Key] = true
	}
	themes := make(map[string]string)
	for _, t := range f.ThemeStylesheets {
		if t.Key == "" {
			return fmt.Errorf("theme stylesheet %q has no key", t.Name)
		}
		if !structures[t.Structure] {
			return fmt.Errorf("theme stylesheet %q references unknown structure stylesheet %q", t.Key, t.Structure)
		}
		themes[t.Key] = t.Structure
	}
	for _, p := range f.Profiles {
		if p.Name == "" {
			return errors.New("profile without name")
		}
		if !structures[p.Structure] {
			return fmt.Errorf("profile %q references unknown structure stylesheet %q", p.Name, p.Structure)
		}
		owner, ok := themes[p.Theme]
		if !ok {
			return fmt.Errorf("profile %q references unknown theme stylesheet %q", p.Name, p.Theme)
		}
		if owner != p.Structure {
			return fmt.Errorf("profile %q: theme %q belongs to structure %q, not %q", p.Name, p.Theme, owner, p.Structure)
		}
	}
	return nil
}

func parameterDescriptions(in map[string]seedParameter) map[string]domain.ParameterDescription {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]domain.ParameterDescription, len(in))
	for name, p := range in {
		out[name] = domain.ParameterDescription{Default: p.Default, Description: p.Description}
	}
	return out
}
