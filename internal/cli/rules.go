package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pscheid92/portalprefs/internal/domain"
)

type ruleMatch struct {
	Agent   string `json:"agent"`
	Rule    string `json:"rule,omitempty"`
	Profile string `json:"profile,omitempty"`
}

type rulesCheckOutput struct {
	Rules   int         `json:"rules"`
	Matches []ruleMatch `json:"matches,omitempty"`
}

func newRulesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		GroupID: "rules",
		Short:   "Work with profile mapping rules",
	}
	cmd.AddCommand(newRulesCheckCmd(g))
	return cmd
}

func newRulesCheckCmd(g *globalFlags) *cobra.Command {
	var (
		agents []string
		user   string
	)

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Compile a rule file and optionally try it against user agents",
		Long: `Compiles every rule of the file. Without a file the built-in rules are
checked. Each --agent is matched as the given user and the first matching rule
is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			m, err := loadMapper(path)
			if err != nil {
				return err
			}

			out := rulesCheckOutput{Rules: m.Len()}
			identity := domain.Identity{UserID: user}
			for _, agent := range agents {
				rule, profile := m.Match(cmd.Context(), identity, domain.RequestContext{UserAgent: agent})
				out.Matches = append(out.Matches, ruleMatch{Agent: agent, Rule: rule, Profile: profile})
			}

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				return outputJSON(w, out)
			}
			printSuccess(w, strconv.Itoa(out.Rules)+" rules compiled")
			for _, match := range out.Matches {
				printSection(w, match.Agent)
				printLabelValue(w, "Rule", orNone(match.Rule))
				printLabelValue(w, "Profile", orNone(match.Profile))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&agents, "agent", nil, "user agent to match (repeatable)")
	cmd.Flags().StringVar(&user, "user", "guest", "user id exposed to the rules")
	return cmd
}
