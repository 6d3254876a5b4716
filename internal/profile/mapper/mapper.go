// Package mapper derives fallback profile names from the request.
//
// Rules are boolean expr-lang expressions evaluated in order against the
// request; the first matching rule names the profile. Rule sets are plain YAML:
//
//	default: ""
//	rules:
//	  - name: phones
//	    when: user_agent matches "iPhone|Android.*Mobile"
//	    profile: mobile
//
// Expressions see user_agent, user_id, legacy_id, accept_language, path and
// headers (canonical header name to first value).
package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/pscheid92/portalprefs/internal/domain"
)

// RuleSet is the YAML form of a mapper configuration.
type RuleSet struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

type Rule struct {
	Name    string `yaml:"name"`
	When    string `yaml:"when"`
	Profile string `yaml:"profile"`
}

// DefaultRuleSet is used when no rule file is configured. It only separates
// handheld devices; everything else stays unmapped by name.
var DefaultRuleSet = RuleSet{
	Rules: []Rule{
		{Name: "tablets", When: `user_agent matches "iPad|Tablet" || (user_agent contains "Android" && !(user_agent contains "Mobile"))`, Profile: "tablet"},
		{Name: "phones", When: `user_agent matches "iPhone|iPod|Android.*Mobile|Windows Phone"`, Profile: "mobile"},
	},
}

type compiledRule struct {
	Rule
	program *exprvm.Program
}

// ExprMapper is a domain.ProfileMapper driven by compiled expr-lang rules.
// It is immutable after construction and safe for concurrent use.
type ExprMapper struct {
	rules []compiledRule
	def   string
}

// New compiles every rule of set. Compilation errors name the offending rule.
func New(set RuleSet) (*ExprMapper, error) {
	m := &ExprMapper{def: set.Default, rules: make([]compiledRule, 0, len(set.Rules))}
	var errs []error
	for i, r := range set.Rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			r.Name = name
		}
		if r.Profile == "" {
			errs = append(errs, fmt.Errorf("rule %s: profile must not be empty", name))
			continue
		}
		if r.When == "" {
			errs = append(errs, fmt.Errorf("rule %s: when must not be empty", name))
			continue
		}
		program, err := exprlang.Compile(r.When, exprlang.Env(sampleEnv()), exprlang.AsBool())
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", name, err))
			continue
		}
		m.rules = append(m.rules, compiledRule{Rule: r, program: program})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Parse decodes a YAML rule set and compiles it.
func Parse(data []byte) (*ExprMapper, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}
	return New(set)
}

// LoadFile reads and compiles the rule set at path.
func LoadFile(path string) (*ExprMapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Len returns the number of compiled rules.
func (m *ExprMapper) Len() int {
	return len(m.rules)
}

// Match evaluates the rules in order and reports the first match. A rule whose
// evaluation fails is logged and skipped. When nothing matches the configured
// default is returned with an empty rule name.
func (m *ExprMapper) Match(ctx context.Context, identity domain.Identity, req domain.RequestContext) (rule, profile string) {
	env := newEnv(identity, req)
	for _, r := range m.rules {
		out, err := exprlang.Run(r.program, env)
		if err != nil {
			slog.WarnContext(ctx, "Profile rule evaluation failed", "rule", r.Name, "error", err)
			continue
		}
		if matched, _ := out.(bool); matched {
			return r.Name, r.Profile
		}
	}
	return "", m.def
}

func (m *ExprMapper) MapProfileName(ctx context.Context, identity domain.Identity, req domain.RequestContext) string {
	_, profile := m.Match(ctx, identity, req)
	return profile
}

// Static always maps to the same name. Static("") never maps.
type Static string

func (s Static) MapProfileName(context.Context, domain.Identity, domain.RequestContext) string {
	return string(s)
}

func newEnv(identity domain.Identity, req domain.RequestContext) map[string]any {
	headers := make(map[string]string, len(req.Header))
	for k, v := range req.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return map[string]any{
		"user_agent":      req.UserAgent,
		"user_id":         identity.UserID,
		"legacy_id":       identity.LegacyID,
		"accept_language": req.AcceptLanguage,
		"path":            req.Path,
		"headers":         headers,
	}
}

func sampleEnv() map[string]any {
	return newEnv(domain.Identity{}, domain.RequestContext{})
}
