// Package scaling analyzes how one benchmark configuration behaves as
// concurrency increases, producing per-level efficiency classifications
// and a recommended concurrency ceiling.
package scaling

import (
	"fmt"
	"sort"

	"github.com/querybench/querybench/pkg/summary"
	"github.com/sirupsen/logrus"
)

// Band classifies a concurrency level's scaling efficiency.
type Band string

const (
	BandExcellent  Band = "excellent"
	BandAcceptable Band = "acceptable"
	BandDegrading  Band = "degrading"
)

// Config holds the classification thresholds. They are policy
// constants with no statistical derivation, so they stay configurable.
type Config struct {
	ExcellentThresholdPct  float64 `yaml:"excellent_threshold_pct"`
	AcceptableThresholdPct float64 `yaml:"acceptable_threshold_pct"`

	// CeilingFloorPct is the minimum efficiency a level must hold to be
	// eligible as the recommended concurrency ceiling.
	CeilingFloorPct float64 `yaml:"ceiling_floor_pct"`
}

// Defaults for Config.
const (
	DefaultExcellentThresholdPct  = 90
	DefaultAcceptableThresholdPct = 70
	DefaultCeilingFloorPct        = 70
)

func (c *Config) applyDefaults() {
	if c.ExcellentThresholdPct == 0 {
		c.ExcellentThresholdPct = DefaultExcellentThresholdPct
	}

	if c.AcceptableThresholdPct == 0 {
		c.AcceptableThresholdPct = DefaultAcceptableThresholdPct
	}

	if c.CeilingFloorPct == 0 {
		c.CeilingFloorPct = DefaultCeilingFloorPct
	}
}

// Level is the scaling analysis of one concurrency level relative to
// the baseline.
type Level struct {
	Concurrency int    `json:"concurrency"`
	RunID       string `json:"run_id"`

	ThroughputQPS   float64 `json:"throughput"`
	ScalingFactor   float64 `json:"scaling_factor"`
	ThroughputRatio float64 `json:"throughput_ratio"`
	EfficiencyPct   float64 `json:"efficiency_pct"`
	Band            Band    `json:"band"`

	// DegradationPct maps each latency metric to its percent change
	// from the baseline. Positive means worse, since higher latency is
	// worse.
	DegradationPct map[string]float64 `json:"degradation_pct"`
}

// Profile is the complete scaling analysis of one configuration.
type Profile struct {
	Engine      string `json:"engine"`
	ClusterSize string `json:"cluster_size"`
	Benchmark   string `json:"benchmark"`

	BaselineConcurrency int     `json:"baseline_concurrency"`
	Levels              []Level `json:"levels"`

	// RecommendedCeiling is the highest concurrency whose efficiency
	// stays at or above the configured floor. Zero when no level
	// qualifies.
	RecommendedCeiling int `json:"recommended_ceiling"`
}

// latencyMetrics are the metrics degradation is tracked for.
var latencyMetrics = map[string]func(*summary.RunSummary) float64{
	"avg": func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.AvgTimeSec },
	"p50": func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P50LatencySec },
	"p90": func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P90LatencySec },
	"p95": func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P95LatencySec },
	"p99": func(s *summary.RunSummary) float64 { return s.PerformanceMetrics.P99LatencySec },
}

// Analyzer computes scaling profiles from run summary series.
type Analyzer struct {
	log logrus.FieldLogger
	cfg Config
}

// NewAnalyzer creates an Analyzer with the given thresholds.
func NewAnalyzer(log logrus.FieldLogger, cfg Config) *Analyzer {
	cfg.applyDefaults()

	return &Analyzer{
		log: log.WithField("component", "scaling"),
		cfg: cfg,
	}
}

// Analyze builds the scaling profile for a series of runs of one
// configuration. The series may arrive in any order; it is sorted by
// concurrency and the lowest level becomes the baseline. All runs must
// share the same engine, cluster size and benchmark.
func (a *Analyzer) Analyze(summaries []*summary.RunSummary) (*Profile, error) {
	if len(summaries) == 0 {
		return nil, fmt.Errorf("scaling analysis needs at least one run")
	}

	for _, s := range summaries {
		if err := s.Identity.Validate(); err != nil {
			return nil, err
		}
	}

	ref := summaries[0].Identity

	ordered := make([]*summary.RunSummary, len(summaries))
	copy(ordered, summaries)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Identity.Concurrency < ordered[j].Identity.Concurrency
	})

	for _, s := range ordered {
		id := s.Identity

		if id.Engine != ref.Engine || id.ClusterSize != ref.ClusterSize || id.Benchmark != ref.Benchmark {
			return nil, fmt.Errorf(
				"run %s (%s) does not belong to configuration %s",
				id.RunID, id, ref,
			)
		}

		if id.Concurrency <= 0 {
			return nil, fmt.Errorf("run %s has no concurrency level", id.RunID)
		}
	}

	baseline := ordered[0]

	profile := &Profile{
		Engine:              ref.Engine,
		ClusterSize:         ref.ClusterSize,
		Benchmark:           ref.Benchmark,
		BaselineConcurrency: baseline.Identity.Concurrency,
		Levels:              make([]Level, 0, len(ordered)),
	}

	for _, s := range ordered {
		profile.Levels = append(profile.Levels, a.analyzeLevel(baseline, s))
	}

	for _, lvl := range profile.Levels {
		if lvl.EfficiencyPct >= a.cfg.CeilingFloorPct && lvl.Concurrency > profile.RecommendedCeiling {
			profile.RecommendedCeiling = lvl.Concurrency
		}
	}

	a.log.WithFields(logrus.Fields{
		"engine":    ref.Engine,
		"benchmark": ref.Benchmark,
		"levels":    len(profile.Levels),
		"ceiling":   profile.RecommendedCeiling,
	}).Info("Computed scaling profile")

	return profile, nil
}

func (a *Analyzer) analyzeLevel(baseline, s *summary.RunSummary) Level {
	lvl := Level{
		Concurrency:    s.Identity.Concurrency,
		RunID:          s.Identity.RunID,
		ThroughputQPS:  s.PerformanceMetrics.ThroughputQPS,
		DegradationPct: make(map[string]float64, len(latencyMetrics)),
	}

	lvl.ScalingFactor = float64(s.Identity.Concurrency) / float64(baseline.Identity.Concurrency)

	if s == baseline {
		// The baseline measures itself: perfectly efficient by
		// definition, even when its throughput is zero.
		lvl.ThroughputRatio = 1
		lvl.EfficiencyPct = 100
	} else {
		if base := baseline.PerformanceMetrics.ThroughputQPS; base > 0 {
			lvl.ThroughputRatio = s.PerformanceMetrics.ThroughputQPS / base
		}

		lvl.EfficiencyPct = lvl.ThroughputRatio / lvl.ScalingFactor * 100
	}

	lvl.Band = a.classify(lvl.EfficiencyPct)

	for name, value := range latencyMetrics {
		base := value(baseline)
		if base == 0 {
			lvl.DegradationPct[name] = 0

			continue
		}

		lvl.DegradationPct[name] = (value(s) - base) / base * 100
	}

	return lvl
}

func (a *Analyzer) classify(efficiencyPct float64) Band {
	switch {
	case efficiencyPct >= a.cfg.ExcellentThresholdPct:
		return BandExcellent
	case efficiencyPct >= a.cfg.AcceptableThresholdPct:
		return BandAcceptable
	default:
		return BandDegrading
	}
}
