package naming

import "strings"

// EnginePattern associates a driver-class substring with an engine tag.
// Matching is case-insensitive and first-match-wins, so more specific
// substrings should come first.
type EnginePattern struct {
	Substring string `yaml:"substring"`
	Engine    string `yaml:"engine"`
}

// DefaultEnginePatterns covers the JDBC drivers the framework has run
// against. New engines are added here or via configuration, never by
// editing detection logic.
func DefaultEnginePatterns() []EnginePattern {
	return []EnginePattern{
		{Substring: "e6data", Engine: "e6data"},
		{Substring: "simba.spark", Engine: "databricks"},
		{Substring: "databricks", Engine: "databricks"},
		{Substring: "trino", Engine: "trino"},
		{Substring: "athena", Engine: "athena"},
		{Substring: "snowflake", Engine: "snowflake"},
	}
}

// EngineDetector maps a JDBC driver class to an engine tag.
type EngineDetector struct {
	patterns []EnginePattern
}

// NewEngineDetector builds a detector from the given table, falling
// back to the default table when none is configured.
func NewEngineDetector(patterns []EnginePattern) *EngineDetector {
	if len(patterns) == 0 {
		patterns = DefaultEnginePatterns()
	}

	return &EngineDetector{patterns: patterns}
}

// Detect returns the engine tag for a driver class, or ok=false when no
// pattern matches.
func (d *EngineDetector) Detect(driverClass string) (engine string, ok bool) {
	lower := strings.ToLower(driverClass)

	for _, p := range d.patterns {
		if strings.Contains(lower, strings.ToLower(p.Substring)) {
			return p.Engine, true
		}
	}

	return "", false
}
