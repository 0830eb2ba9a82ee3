// Package naming reconciles engine-specific query labels into canonical
// query identifiers so the same logical query can be aligned across
// differently labeled runs.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule transforms a raw label toward its canonical form. Exactly one
// transformation kind should be set per rule. ExtractPattern is a
// regular expression whose first capture group becomes the canonical
// id; it takes precedence over prefix/suffix stripping when set.
type Rule struct {
	StripPrefix    string `yaml:"strip_prefix,omitempty"`
	StripSuffix    string `yaml:"strip_suffix,omitempty"`
	ExtractPattern string `yaml:"extract_pattern,omitempty"`
}

// Config is the engine-keyed rule table. Engines absent from the table
// get no rules; their labels pass through unmapped.
type Config struct {
	Rules map[string][]Rule `yaml:"rules"`
}

// DefaultConfig returns the rule table for the engines the framework
// has historically benchmarked. e6data labels wrap the canonical id in
// a numeric prefix and an optional optimization-variant suffix, e.g.
// query-69-TPCDS-69-optimised.
func DefaultConfig() Config {
	return Config{
		Rules: map[string][]Rule{
			"e6data": {
				{ExtractPattern: `^query-\d+-(TPCDS-\d+)(?:-optimised|-optimized)?$`},
				{ExtractPattern: `^(TPCDS-\d+)$`},
			},
			"databricks": {
				{ExtractPattern: `^(TPCDS-\d+)$`},
				{StripSuffix: "-dbr"},
			},
		},
	}
}

type compiledRule struct {
	prefix  string
	suffix  string
	extract *regexp.Regexp
}

// Normalizer applies an engine-keyed rule table to raw labels. It is
// stateless after construction and safe for concurrent use.
type Normalizer struct {
	rules map[string][]compiledRule
}

// NewNormalizer compiles the rule table. An invalid extract pattern is
// a configuration error reported with the engine it belongs to.
func NewNormalizer(cfg Config) (*Normalizer, error) {
	n := &Normalizer{rules: make(map[string][]compiledRule, len(cfg.Rules))}

	for engine, rules := range cfg.Rules {
		compiled := make([]compiledRule, 0, len(rules))

		for _, r := range rules {
			cr := compiledRule{prefix: r.StripPrefix, suffix: r.StripSuffix}

			if r.ExtractPattern != "" {
				re, err := regexp.Compile(r.ExtractPattern)
				if err != nil {
					return nil, fmt.Errorf("compiling rule for engine %s: %w", engine, err)
				}

				if re.NumSubexp() < 1 {
					return nil, fmt.Errorf(
						"extract pattern for engine %s needs a capture group: %s",
						engine, r.ExtractPattern,
					)
				}

				cr.extract = re
			}

			compiled = append(compiled, cr)
		}

		n.rules[engine] = compiled
	}

	return n, nil
}

// Normalize maps a raw label to its canonical query id. The first rule
// that applies wins. Labels no rule applies to pass through unchanged
// with unmapped=true, so alignment gaps stay visible instead of being
// silently dropped.
func (n *Normalizer) Normalize(raw, engine string) (canonical string, unmapped bool) {
	for _, r := range n.rules[engine] {
		if r.extract != nil {
			if m := r.extract.FindStringSubmatch(raw); m != nil {
				return m[1], false
			}

			continue
		}

		out := raw
		applied := false

		if r.prefix != "" && strings.HasPrefix(out, r.prefix) {
			out = strings.TrimPrefix(out, r.prefix)
			applied = true
		}

		if r.suffix != "" && strings.HasSuffix(out, r.suffix) {
			out = strings.TrimSuffix(out, r.suffix)
			applied = true
		}

		if applied {
			return out, false
		}
	}

	return raw, true
}
