// Package categorize assigns ledger categories to accepted records.
//
// The engine treats categorization as a pluggable collaborator behind the
// Categorizer interface; the shipped implementation is a YAML keyword rule
// table. Rules are evaluated in file order and the first match wins, so more
// specific rules belong at the top.
package categorize

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ledger-reconciler/internal/models"
	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// Categorizer assigns a category to a record. Implementations must not
// change record status.
type Categorizer interface {
	Categorize(record *models.StandardRecord) (category, subcategory string, matched bool)
}

// Rule maps remark/merchant keywords to a category
type Rule struct {
	Keywords    []string `yaml:"keywords"`
	Category    string   `yaml:"category"`
	Subcategory string   `yaml:"subcategory,omitempty"`

	// Sheet limits the rule to one sheet when set
	Sheet string `yaml:"sheet,omitempty"`
}

// ruleFile is the YAML document layout
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// RuleTable is a keyword-based Categorizer
type RuleTable struct {
	rules []Rule
	log   logger.Logger
}

// NewRuleTable creates a categorizer from in-memory rules
func NewRuleTable(rules []Rule, log logger.Logger) *RuleTable {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &RuleTable{
		rules: rules,
		log:   log.WithComponent("categorize"),
	}
}

// LoadRules reads a YAML rule file. Rules without keywords or category are
// rejected up front rather than silently never matching.
func LoadRules(path string, log logger.Logger) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidOption,
			"cannot read category rules "+path)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidFormat,
			"cannot parse category rules "+path)
	}
	for i, rule := range file.Rules {
		if len(rule.Keywords) == 0 || rule.Category == "" {
			return nil, apperrors.New(apperrors.CategoryConfiguration, apperrors.CodeInvalidOption,
				"category rule needs keywords and a category").
				WithContext("rule_index", i).
				WithContext("path", path)
		}
	}
	return NewRuleTable(file.Rules, log), nil
}

// Categorize returns the first rule matching the record's remark or merchant
func (t *RuleTable) Categorize(record *models.StandardRecord) (string, string, bool) {
	text := record.Remark
	if record.Merchant != "" {
		text += "\x00" + record.Merchant
	}
	normalized := models.NormalizeText(text)

	for _, rule := range t.rules {
		if rule.Sheet != "" && rule.Sheet != string(record.Sheet) {
			continue
		}
		for _, keyword := range rule.Keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(text, keyword) || strings.Contains(normalized, models.NormalizeText(keyword)) {
				return rule.Category, rule.Subcategory, true
			}
		}
	}
	return "", "", false
}

// Apply categorizes every accepted record in place and returns how many
// matched a rule. Unmatched records keep an empty category and fall back to
// the sheet default at render time.
func Apply(records []*models.StandardRecord, categorizer Categorizer, log logger.Logger) int {
	if categorizer == nil {
		return 0
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	matched := 0
	for _, record := range records {
		if record.Status != models.StatusAccepted {
			continue
		}
		category, subcategory, ok := categorizer.Categorize(record)
		if !ok {
			continue
		}
		record.Category = category
		record.Subcategory = subcategory
		matched++
	}
	log.WithComponent("categorize").WithField("matched", matched).Debug("Categorization applied")
	return matched
}
