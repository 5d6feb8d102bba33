package healing

import (
	"fmt"
	"os"
	"regexp"

	"go.yaml.in/yaml/v3"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// ruleFile is the on-disk format of extra healing rules.
type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name           string    `yaml:"name"`
	Pattern        string    `yaml:"pattern"`
	Replacement    string    `yaml:"replacement"`
	Remove         bool      `yaml:"remove"`
	Category       string    `yaml:"category"`
	Type           string    `yaml:"type"`
	Confidence     int       `yaml:"confidence"`
	Risk           string    `yaml:"risk"`
	Impact         string    `yaml:"impact"`
	AutoApplicable bool      `yaml:"auto_applicable"`
	Rationale      string    `yaml:"rationale"`
	Extensions     []string  `yaml:"extensions"`
	Examples       []Example `yaml:"examples"`
}

// LoadRules reads extra rules from a YAML file. Every rule is compiled
// and its examples are checked.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses rules in the LoadRules format.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, spec := range f.Rules {
		r, err := spec.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if err := r.Check(); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (s ruleSpec) compile() (Rule, error) {
	if s.Name == "" {
		return Rule{}, fmt.Errorf("missing name")
	}
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("%s: invalid pattern: %w", s.Name, err)
	}

	typ := models.HealingActionType(s.Type)
	switch typ {
	case "":
		typ = models.HealingSuggestion
	case models.HealingAutoFix, models.HealingSuggestion, models.HealingRefactor, models.HealingOptimize:
	default:
		return Rule{}, fmt.Errorf("%s: unknown action type %q", s.Name, s.Type)
	}

	risk, err := riskOrDefault(s.Risk, models.RiskMedium)
	if err != nil {
		return Rule{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	impact, err := riskOrDefault(s.Impact, models.RiskLow)
	if err != nil {
		return Rule{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return Rule{}, fmt.Errorf("%s: confidence %d outside 0..100", s.Name, s.Confidence)
	}

	return Rule{
		Name:           s.Name,
		Category:       s.Category,
		Pattern:        re,
		Type:           typ,
		Confidence:     s.Confidence,
		Risk:           risk,
		Impact:         impact,
		AutoApplicable: s.AutoApplicable,
		Rationale:      s.Rationale,
		Replacement:    s.Replacement,
		Remove:         s.Remove,
		Extensions:     s.Extensions,
		Examples:       s.Examples,
	}, nil
}

func riskOrDefault(v string, def models.RiskLevel) (models.RiskLevel, error) {
	if v == "" {
		return def, nil
	}
	r := models.RiskLevel(v)
	if !r.Valid() {
		return "", fmt.Errorf("unknown risk level %q", v)
	}
	return r, nil
}
