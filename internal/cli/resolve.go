package cli

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/profile"
	"github.com/pscheid92/portalprefs/internal/profile/mapper"
)

type resolveOutput struct {
	Step       string          `json:"step"`
	Signature  string          `json:"signature"`
	MappedName string          `json:"mapped_name,omitempty"`
	Profile    *domain.Profile `json:"profile,omitempty"`
}

func newResolveCmd(g *globalFlags) *cobra.Command {
	var (
		user           string
		agent          string
		acceptLanguage string
		rulesPath      string
	)

	cmd := &cobra.Command{
		Use:     "resolve",
		GroupID: "store",
		Short:   "Show which profile a user and client would get",
		Long: `Runs the profile cascade against the store: the user's profile for the agent,
the system profile for the agent, then the mapped profile name for the user and
the system. An empty agent is looked up as "null".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMapper(rulesPath)
			if err != nil {
				return err
			}

			store, closeFn, err := g.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			header := http.Header{}
			if acceptLanguage != "" {
				header.Set("Accept-Language", acceptLanguage)
			}
			req := domain.RequestContext{UserAgent: agent, AcceptLanguage: acceptLanguage, Header: header}

			res, err := profile.NewResolver(store, m).Resolve(cmd.Context(), domain.Identity{UserID: user}, req)
			if err != nil {
				return err
			}

			out := resolveOutput{
				Step:       string(res.Step),
				Signature:  string(res.Signature),
				MappedName: res.MappedName,
				Profile:    res.Profile,
			}
			w := cmd.OutOrStdout()
			if g.jsonOutput {
				return outputJSON(w, out)
			}

			printSection(w, "Resolution")
			printLabelValue(w, "Signature", out.Signature)
			printLabelValue(w, "Step", out.Step)
			printLabelValue(w, "Mapped name", orNone(out.MappedName))
			if res.Unmapped() {
				printWarning(w, "No profile for this client")
				return nil
			}
			printLabelValue(w, "Profile", res.Profile.Name)
			printLabelValue(w, "Layout", strconv.Itoa(res.Profile.LayoutID))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&user, "user", "guest", "user id")
	f.StringVar(&agent, "agent", "", "client user agent")
	f.StringVar(&acceptLanguage, "accept-language", "", "Accept-Language header value")
	f.StringVar(&rulesPath, "rules", "", "profile rule file (default: built-in rules)")
	return cmd
}

func loadMapper(path string) (*mapper.ExprMapper, error) {
	if path == "" {
		return mapper.New(mapper.DefaultRuleSet)
	}
	return mapper.LoadFile(path)
}
