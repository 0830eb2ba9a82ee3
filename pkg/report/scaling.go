package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/querybench/querybench/pkg/scaling"
)

// ScalingMarkdown renders a scaling profile as a markdown report.
func ScalingMarkdown(p *scaling.Profile) string {
	var sb strings.Builder

	sb.Grow(2048)

	fmt.Fprintf(&sb, "# Scaling Analysis: %s %s %s\n\n",
		p.Engine, p.ClusterSize, p.Benchmark)

	fmt.Fprintf(&sb, "Baseline concurrency: %d. ", p.BaselineConcurrency)

	if p.RecommendedCeiling > 0 {
		fmt.Fprintf(&sb, "Recommended concurrency ceiling: **%d**.\n\n",
			p.RecommendedCeiling)
	} else {
		sb.WriteString("No level met the efficiency floor.\n\n")
	}

	sb.WriteString("## Levels\n\n")
	sb.WriteString("| Concurrency | Throughput | Factor | Ratio | Efficiency | Band |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")

	for _, lvl := range p.Levels {
		fmt.Fprintf(&sb, "| %d | %.2f q/s | %.1fx | %.2fx | %.1f%% | %s |\n",
			lvl.Concurrency, lvl.ThroughputQPS, lvl.ScalingFactor,
			lvl.ThroughputRatio, lvl.EfficiencyPct, lvl.Band)
	}

	sb.WriteByte('\n')

	writeDegradation(&sb, p)

	return sb.String()
}

// writeDegradation renders the per-metric latency degradation table for
// the non-baseline levels.
func writeDegradation(sb *strings.Builder, p *scaling.Profile) {
	if len(p.Levels) < 2 {
		return
	}

	metrics := make([]string, 0, len(p.Levels[0].DegradationPct))
	for name := range p.Levels[0].DegradationPct {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)

	if len(metrics) == 0 {
		return
	}

	sb.WriteString("## Latency Degradation vs Baseline\n\n")
	fmt.Fprintf(sb, "| Concurrency | %s |\n", strings.Join(metrics, " | "))
	sb.WriteString("|---" + strings.Repeat("|---", len(metrics)) + "|\n")

	for _, lvl := range p.Levels {
		if lvl.Concurrency == p.BaselineConcurrency {
			continue
		}

		fmt.Fprintf(sb, "| %d |", lvl.Concurrency)

		for _, name := range metrics {
			fmt.Fprintf(sb, " %+.1f%% |", lvl.DegradationPct[name])
		}

		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
}
