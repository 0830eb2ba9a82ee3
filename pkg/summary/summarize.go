package summary

import (
	"math"
	"sort"

	"github.com/querybench/querybench/pkg/ingest"
	"github.com/sirupsen/logrus"
)

// Config holds the tunable policy parameters of summarization. The
// stability weights and warmup fraction are empirically chosen policy,
// not derived statistics; they are configurable so deployments can
// adjust them without code changes.
type Config struct {
	StabilityErrorWeight float64 `yaml:"stability_error_weight"`
	StabilityCVWeight    float64 `yaml:"stability_cv_weight"`
	WarmupFraction       float64 `yaml:"warmup_fraction"`
	TopSlowestCount      int     `yaml:"top_slowest_count"`
}

// Defaults for Config.
const (
	DefaultStabilityErrorWeight = 0.6
	DefaultStabilityCVWeight    = 0.4
	DefaultWarmupFraction       = 0.1
	DefaultTopSlowestCount      = 3
)

// applyDefaults fills zero-valued fields with defaults.
func (c *Config) applyDefaults() {
	if c.StabilityErrorWeight == 0 {
		c.StabilityErrorWeight = DefaultStabilityErrorWeight
	}

	if c.StabilityCVWeight == 0 {
		c.StabilityCVWeight = DefaultStabilityCVWeight
	}

	if c.WarmupFraction == 0 {
		c.WarmupFraction = DefaultWarmupFraction
	}

	if c.TopSlowestCount == 0 {
		c.TopSlowestCount = DefaultTopSlowestCount
	}
}

// Summarizer reduces classified record batches into run summaries.
// It holds no per-run state; every summary is a pure function of the
// batch and identity passed in.
type Summarizer struct {
	log logrus.FieldLogger
	cfg Config
}

// NewSummarizer creates a Summarizer with the given policy config.
func NewSummarizer(log logrus.FieldLogger, cfg Config) *Summarizer {
	cfg.applyDefaults()

	return &Summarizer{
		log: log.WithField("component", "summarizer"),
		cfg: cfg,
	}
}

// Summarize computes the RunSummary for one run. A batch with zero real
// records yields a zeroed summary flagged no_data; it never fails.
func (s *Summarizer) Summarize(identity RunIdentity, batch *ingest.Batch) *RunSummary {
	real := batch.RealRecords()

	out := &RunSummary{
		Identity: identity,
		QueryStatistics: QueryStatistics{
			TotalQueries:          len(batch.Records),
			BootstrapQueries:      batch.BootstrapCount,
			ControlSamplerQueries: batch.ControlSamplerCount,
			RealQueries:           len(real),
			SkippedRows:           batch.SkippedRows,
			TopSlowestQueries:     []SlowQuery{},
		},
		FailureAnalysis: FailureAnalysis{
			FailedQueries:         []FailedQuery{},
			ResponseCodeHistogram: map[string]int{},
			FirstFailureIndex:     -1,
		},
	}

	if len(real) == 0 {
		out.NoData = true

		s.log.WithField("run_id", identity.RunID).
			Warn("Run has no real-query records; emitting no_data summary")

		return out
	}

	out.StartTimestampMs = real[0].Timestamp
	out.EndTimestampMs = real[len(real)-1].Timestamp + real[len(real)-1].Elapsed

	s.fillTestResults(out, real)
	s.fillPerformance(out, real)
	s.fillWarmup(out, real)
	s.fillFailures(out, real)
	s.fillPerQuery(out, real)

	// Stability combines the error rate and the dispersion of
	// successful latencies into a single [0,1] score.
	errTerm := 1 - out.TestResults.ErrorPercent/100
	cvTerm := math.Max(0, 1-out.PerformanceMetrics.CoefficientOfVariation)
	out.TestResults.StabilityScore = s.cfg.StabilityErrorWeight*errTerm + s.cfg.StabilityCVWeight*cvTerm

	return out
}

func (s *Summarizer) fillTestResults(out *RunSummary, real []ingest.Record) {
	tr := &out.TestResults
	tr.TotalSamples = len(real)

	for _, r := range real {
		if r.Success {
			tr.TotalSuccess++
		} else {
			tr.TotalFailed++
		}
	}

	if tr.TotalSamples > 0 {
		tr.ErrorPercent = float64(tr.TotalFailed) / float64(tr.TotalSamples) * 100
	}
}

func (s *Summarizer) fillPerformance(out *RunSummary, real []ingest.Record) {
	pm := &out.PerformanceMetrics

	// Latency distribution is computed over successful executions only;
	// failed queries are accounted for in the failure analysis.
	durations := make([]float64, 0, len(real))

	for _, r := range real {
		if !r.Success {
			continue
		}

		sec := float64(r.Elapsed) / 1000

		durations = append(durations, sec)

		switch {
		case sec < 1:
			out.TimingDistribution.QueriesUnder1Sec++
		case sec < 5:
			out.TimingDistribution.Queries1To5Sec++
		case sec < 10:
			out.TimingDistribution.Queries5To10Sec++
		default:
			out.TimingDistribution.QueriesOver10Sec++
		}
	}

	if len(durations) > 0 {
		sorted := make([]float64, len(durations))
		copy(sorted, durations)
		sort.Float64s(sorted)

		pm.MinTimeSec = sorted[0]
		pm.MaxTimeSec = sorted[len(sorted)-1]
		pm.AvgTimeSec = mean(durations)
		pm.MedianTimeSec = medianSorted(sorted)
		pm.StdDevSec = sampleStdDev(durations, pm.AvgTimeSec)

		if pm.AvgTimeSec > 0 {
			pm.CoefficientOfVariation = pm.StdDevSec / pm.AvgTimeSec
		}

		pm.P25LatencySec = percentileSorted(sorted, 25)
		pm.P50LatencySec = percentileSorted(sorted, 50)
		pm.P75LatencySec = percentileSorted(sorted, 75)
		pm.P90LatencySec = percentileSorted(sorted, 90)
		pm.P95LatencySec = percentileSorted(sorted, 95)
		pm.P99LatencySec = percentileSorted(sorted, 99)
		pm.IQRSec = pm.P75LatencySec - pm.P25LatencySec

		lower := pm.P25LatencySec - 1.5*pm.IQRSec
		upper := pm.P75LatencySec + 1.5*pm.IQRSec

		for _, v := range durations {
			if v < lower || v > upper {
				pm.OutlierCount++
			}
		}
	}

	// Throughput covers the full span of real records regardless of
	// success, since failed queries still occupied the run window.
	first := real[0]
	last := real[len(real)-1]
	pm.TotalTimeTakenSec = float64(last.Timestamp+last.Elapsed-first.Timestamp) / 1000

	if pm.TotalTimeTakenSec > 0 {
		pm.ThroughputQPS = float64(len(real)) / pm.TotalTimeTakenSec
		pm.QueriesPerMinute = pm.ThroughputQPS * 60
	}
}

func (s *Summarizer) fillWarmup(out *RunSummary, real []ingest.Record) {
	wa := &out.WarmupAnalysis

	warmupN := int(math.Floor(s.cfg.WarmupFraction * float64(len(real))))
	if warmupN < 1 {
		warmupN = 1
	}

	warmup := real[:warmupN]
	steady := real[warmupN:]

	wa.WarmupQueries = len(warmup)
	wa.SteadyStateQueries = len(steady)

	wLast := warmup[len(warmup)-1]
	wa.WarmupDurationSec = float64(wLast.Timestamp+wLast.Elapsed-warmup[0].Timestamp) / 1000
	wa.WarmupAvgSec = avgElapsedSec(warmup)
	wa.SteadyStateAvgSec = avgElapsedSec(steady)
}

func (s *Summarizer) fillFailures(out *RunSummary, real []ingest.Record) {
	fa := &out.FailureAnalysis

	streak := 0
	firstHalf := len(real) / 2
	firstHalfSuccess, secondHalfSuccess := 0, 0

	for i, r := range real {
		if r.Success {
			streak = 0

			if i < firstHalf {
				firstHalfSuccess++
			} else {
				secondHalfSuccess++
			}

			continue
		}

		streak++
		if streak > fa.LongestFailureStreak {
			fa.LongestFailureStreak = streak
		}

		if fa.FirstFailureIndex < 0 {
			fa.FirstFailureIndex = i
		}

		fa.FailedQueries = append(fa.FailedQueries, FailedQuery{
			Query:           r.Label,
			ResponseCode:    r.ResponseCode,
			ResponseMessage: r.ResponseMessage,
		})
		fa.ResponseCodeHistogram[r.ResponseCode]++
	}

	if firstHalf > 0 {
		fa.FirstHalfSuccessRatePct = float64(firstHalfSuccess) / float64(firstHalf) * 100
	}

	if secondN := len(real) - firstHalf; secondN > 0 {
		fa.SecondHalfSuccessRatePct = float64(secondHalfSuccess) / float64(secondN) * 100
	}
}

func (s *Summarizer) fillPerQuery(out *RunSummary, real []ingest.Record) {
	byLabel := make(map[string][]ingest.Record)

	for _, r := range real {
		byLabel[r.Label] = append(byLabel[r.Label], r)
	}

	out.QueryStatistics.UniqueQueries = len(byLabel)
	out.QueryStatistics.Queries = make(map[string]*QueryStats, len(byLabel))

	type labelAvg struct {
		label string
		avg   float64
	}

	avgs := make([]labelAvg, 0, len(byLabel))

	for label, recs := range byLabel {
		durations := make([]float64, 0, len(recs))
		errs := 0

		for _, r := range recs {
			durations = append(durations, float64(r.Elapsed)/1000)

			if !r.Success {
				errs++
			}
		}

		sorted := make([]float64, len(durations))
		copy(sorted, durations)
		sort.Float64s(sorted)

		qs := &QueryStats{
			Samples:   len(recs),
			Errors:    errs,
			ErrorPct:  float64(errs) / float64(len(recs)) * 100,
			AvgSec:    mean(durations),
			MedianSec: medianSorted(sorted),
			MinSec:    sorted[0],
			MaxSec:    sorted[len(sorted)-1],
			P90Sec:    percentileSorted(sorted, 90),
			P95Sec:    percentileSorted(sorted, 95),
			P99Sec:    percentileSorted(sorted, 99),
		}

		out.QueryStatistics.Queries[label] = qs
		avgs = append(avgs, labelAvg{label: label, avg: qs.AvgSec})
	}

	// Sort by average descending, label ascending on ties, so the
	// top-slowest list is deterministic.
	sort.Slice(avgs, func(i, j int) bool {
		if avgs[i].avg != avgs[j].avg {
			return avgs[i].avg > avgs[j].avg
		}

		return avgs[i].label < avgs[j].label
	})

	n := s.cfg.TopSlowestCount
	if n > len(avgs) {
		n = len(avgs)
	}

	for _, la := range avgs[:n] {
		out.QueryStatistics.TopSlowestQueries = append(out.QueryStatistics.TopSlowestQueries, SlowQuery{
			Query:  la.label,
			AvgSec: la.avg,
		})
	}
}

// percentileSorted returns the P-th percentile of sorted (ascending)
// values using the nearest-rank convention with a 1-based index of
// floor(N*P/100)+1, clamped to the tail. This deliberately matches the
// historical convention used by prior result sets rather than linear
// interpolation; changing it would break comparability with stored
// summaries.
func percentileSorted(sorted []float64, p int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	idx := n*p/100 + 1
	if idx < 1 {
		idx = 1
	}

	if idx > n {
		idx = n
	}

	return sorted[idx-1]
}

// medianSorted returns the middle value, averaging the two middles for
// even-length input.
func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// sampleStdDev computes the sample standard deviation (N-1 denominator).
func sampleStdDev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		d := v - avg
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)-1))
}

func avgElapsedSec(recs []ingest.Record) float64 {
	if len(recs) == 0 {
		return 0
	}

	var sum float64
	for _, r := range recs {
		sum += float64(r.Elapsed)
	}

	return sum / float64(len(recs)) / 1000
}
