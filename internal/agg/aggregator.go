package agg

import (
	"cmp"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/PDOK/bucket-usage-auditor/internal/du"
	"github.com/iancoleman/strcase"
)

const (
	// Other is the value of a label that no rule and no default filled in
	Other = "OTHER"
	// Bucket is reserved, metrics are grouped by bucket when pushed
	Bucket = "bucket"
)

var validLabelName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Labels map[string]string

// AggregationRule is matched to a folder key (without trailing separator).
// If it matches, the named groups from the regex pattern, then the static labels of the rule,
// then the labels' defaults are used to group the folder's storage usage.
type AggregationRule struct {
	Pattern      ReGroup `yaml:"pattern"`
	StaticLabels Labels  `yaml:"labels"`
}

type AggregationGroup struct {
	Labels Labels
}

type AggregationResult struct {
	AggregationGroup
	StorageUsage du.StorageUsage
	Files        int64
}

type Aggregator struct {
	labelsWithDefaults Labels
	labelNames         []string
	rules              []AggregationRule
}

func NewAggregator(labelsWithDefaults Labels, rules []AggregationRule) (*Aggregator, error) {
	normalized := make(Labels, len(labelsWithDefaults))
	for name, def := range labelsWithDefaults {
		snake := labelName(name)
		if snake == Bucket {
			return nil, fmt.Errorf("label %q is reserved", Bucket)
		}
		normalized[snake] = defaultStr(def, Other)
	}

	normalizedRules := make([]AggregationRule, 0, len(rules))
	for i, rule := range rules {
		if rule.Pattern.ReGroup == nil {
			return nil, fmt.Errorf("rule %d has no pattern", i)
		}
		for _, name := range rule.Pattern.GroupNames() {
			if _, ok := normalized[labelName(name)]; !ok {
				return nil, fmt.Errorf("rule %d (%s) captures unknown label %q", i, rule.Pattern, name)
			}
		}
		staticLabels := make(Labels, len(rule.StaticLabels))
		for name, value := range rule.StaticLabels {
			snake := labelName(name)
			if _, ok := normalized[snake]; !ok {
				return nil, fmt.Errorf("rule %d (%s) sets unknown label %q", i, rule.Pattern, name)
			}
			staticLabels[snake] = value
		}
		normalizedRules = append(normalizedRules, AggregationRule{Pattern: rule.Pattern, StaticLabels: staticLabels})
	}

	return &Aggregator{
		labelsWithDefaults: normalized,
		labelNames:         slices.Sorted(maps.Keys(normalized)),
		rules:              normalizedRules,
	}, nil
}

// GetLabelNames returns the configured label names, sorted
func (a *Aggregator) GetLabelNames() []string {
	return slices.Clone(a.labelNames)
}

// Aggregate groups folder usages by the labels the rules assign, largest groups first
func (a *Aggregator) Aggregate(folders []du.FolderUsage) []AggregationResult {
	byKey := make(map[string]*AggregationResult)
	for _, folder := range folders {
		group := a.applyRulesToAggregate(strings.TrimSuffix(folder.Folder, du.Separator))
		key := a.groupKey(group)
		result, ok := byKey[key]
		if !ok {
			result = &AggregationResult{AggregationGroup: group}
			byKey[key] = result
		}
		result.StorageUsage += folder.Bytes
		result.Files += folder.Files
	}

	results := make([]AggregationResult, 0, len(byKey))
	for _, result := range byKey {
		results = append(results, *result)
	}
	slices.SortFunc(results, func(x, y AggregationResult) int {
		if c := cmp.Compare(y.StorageUsage, x.StorageUsage); c != 0 {
			return c
		}
		return strings.Compare(a.groupKey(x.AggregationGroup), a.groupKey(y.AggregationGroup))
	})
	return results
}

func (a *Aggregator) applyRulesToAggregate(dir string) AggregationGroup {
	for _, rule := range a.rules {
		groups, err := rule.Pattern.Groups(dir)
		if err != nil { // no match
			continue
		}
		labels := make(Labels, len(a.labelNames))
		for name, value := range groups {
			if value != "" {
				labels[labelName(name)] = value
			}
		}
		a.applyDefaults(labels, rule.StaticLabels)
		return AggregationGroup{Labels: labels}
	}
	labels := make(Labels, len(a.labelNames))
	a.applyDefaults(labels, nil)
	return AggregationGroup{Labels: labels}
}

func (a *Aggregator) applyDefaults(labels Labels, ruleLabels Labels) {
	for _, name := range a.labelNames {
		labels[name] = defaultStr(defaultStr(labels[name], ruleLabels[name]), a.labelsWithDefaults[name])
	}
}

func (a *Aggregator) groupKey(group AggregationGroup) string {
	values := make([]string, len(a.labelNames))
	for i, name := range a.labelNames {
		values[i] = group.Labels[name]
	}
	return strings.Join(values, "\x00")
}

// labelName keeps valid lower case label names as they are and snake_cases anything else
func labelName(name string) string {
	if validLabelName.MatchString(name) {
		return name
	}
	return strcase.ToSnake(name)
}

func defaultStr(s, d string) string {
	if s == "" {
		return d
	}
	return s
}
