package database

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// seedRule is the YAML shape for a seeded alert rule. Rules with no
// integration name are global defaults.
type seedRule struct {
	Integration     string  `yaml:"integration"`
	RuleName        string  `yaml:"rule_name"`
	Metric          string  `yaml:"metric"`
	Comparator      string  `yaml:"comparator"`
	Threshold       float64 `yaml:"threshold"`
	Severity        string  `yaml:"severity"`
	AutoResolve     *bool   `yaml:"auto_resolve"`
	CooldownMinutes int     `yaml:"cooldown_minutes"`
}

type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

// defaultGlobalRules are created on a fresh database when no seed file is
// configured. Thresholds mirror the dashboard's stock alerting policy.
func defaultGlobalRules() []AlertRule {
	return []AlertRule{
		{
			RuleName:    "low_uptime",
			Metric:      MetricUptimePercentage,
			Comparator:  ComparatorLT,
			Threshold:   95,
			Severity:    SeverityWarning,
			AutoResolve: true,
			IsActive:    true,
		},
		{
			RuleName:    "uptime_outage",
			Metric:      MetricUptimePercentage,
			Comparator:  ComparatorLT,
			Threshold:   75,
			Severity:    SeverityCritical,
			AutoResolve: true,
			IsActive:    true,
		},
		{
			RuleName:    "slow_responses",
			Metric:      MetricAvgResponseTime,
			Comparator:  ComparatorGT,
			Threshold:   2000,
			Severity:    SeverityWarning,
			AutoResolve: true,
			IsActive:    true,
		},
		{
			RuleName:        "consecutive_failures",
			Metric:          MetricConsecutiveFailures,
			Comparator:      ComparatorGTE,
			Threshold:       5,
			Severity:        SeverityCritical,
			AutoResolve:     true,
			CooldownMinutes: 15,
			IsActive:        true,
		},
	}
}

// InitializeDefaults seeds global alert rules when the rules table is empty.
// When seedPath is non-empty the rules come from that YAML file instead of
// the built-in defaults.
func InitializeDefaults(seedPath string) error {
	var count int64
	if err := DB.Model(&AlertRule{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count alert rules: %w", err)
	}
	if count > 0 {
		return nil
	}

	rules := defaultGlobalRules()
	if seedPath != "" {
		loaded, err := loadSeedRules(DB, seedPath)
		if err != nil {
			return err
		}
		rules = loaded
	}

	if err := DB.Create(&rules).Error; err != nil {
		return fmt.Errorf("failed to seed alert rules: %w", err)
	}

	log.Info().Int("rules", len(rules)).Str("source", seedSource(seedPath)).Msg("seeded alert rules")
	return nil
}

func seedSource(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}

// loadSeedRules parses a YAML seed file and resolves integration names to
// ids. Unknown integration names are an error so a typo cannot silently
// produce a global rule.
func loadSeedRules(db *gorm.DB, path string) ([]AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules seed file: %w", err)
	}

	rules := make([]AlertRule, 0, len(f.Rules))
	for _, sr := range f.Rules {
		rule := AlertRule{
			RuleName:        sr.RuleName,
			Metric:          AlertMetric(sr.Metric),
			Comparator:      Comparator(sr.Comparator),
			Threshold:       sr.Threshold,
			Severity:        Severity(sr.Severity),
			AutoResolve:     sr.AutoResolve == nil || *sr.AutoResolve,
			CooldownMinutes: sr.CooldownMinutes,
			IsActive:        true,
		}
		if sr.Integration != "" {
			var integration Integration
			if err := db.Where("name = ?", sr.Integration).First(&integration).Error; err != nil {
				return nil, fmt.Errorf("seed rule %q references unknown integration %q", sr.RuleName, sr.Integration)
			}
			rule.IntegrationID = &integration.ID
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
