// Package runpath parses the partitioned storage layout run results
// live under:
//
//	.../engine=X/cluster_size=Y/benchmark=Z/run_type=concurrency_N/run_id=T/
//
// An older layout without the run_type= key prefix is still accepted.
package runpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/querybench/querybench/pkg/summary"
)

// RunTypeSequential is the run type of single-threaded runs; it maps to
// concurrency 1.
const RunTypeSequential = "sequential"

// DefaultCores maps cluster sizes to their total core counts.
var DefaultCores = map[string]int{
	"XS":    30,
	"S-2x2": 60,
	"M":     120,
	"S-4x4": 120,
	"L":     240,
}

// RunPath is a parsed run location.
type RunPath struct {
	Bucket string
	Prefix string

	Engine      string
	ClusterSize string
	Benchmark   string
	RunType     string
	RunID       string

	// Concurrency is 0 when the run type carries no concurrency level.
	Concurrency  int
	IsSequential bool
}

var (
	bucketPattern = regexp.MustCompile(`^s3://([^/]+)/(.*)$`)

	withRunTypePattern = regexp.MustCompile(
		`engine=([^/]+)/cluster_size=([^/]+)/benchmark=([^/]+)/run_type=([^/]+)(?:/run_id=([^/]+))?`,
	)

	// directPattern matches the older layout where the run type segment
	// has no key prefix.
	directPattern = regexp.MustCompile(
		`engine=([^/]+)/cluster_size=([^/]+)/benchmark=([^/]+)/(concurrency_\d+|sequential)(?:/run_id=([^/]+))?`,
	)

	configPattern = regexp.MustCompile(
		`engine=([^/]+)/cluster_size=([^/]+)/benchmark=([^/]+)$`,
	)
)

// ParseConfig extracts configuration metadata from a path that stops at
// the benchmark segment, with no run type. Paths with a run type are
// also accepted; Parse handles them.
func ParseConfig(path string) (*RunPath, error) {
	trimmed := strings.TrimRight(path, "/")

	rp := &RunPath{}

	rest := trimmed
	if m := bucketPattern.FindStringSubmatch(trimmed); m != nil {
		rp.Bucket = m[1]
		rest = m[2]
	}

	m := configPattern.FindStringSubmatch(rest)
	if m == nil {
		return Parse(path)
	}

	rp.Engine = m[1]
	rp.ClusterSize = m[2]
	rp.Benchmark = m[3]

	if idx := strings.Index(rest, "engine="); idx > 0 {
		rp.Prefix = strings.TrimRight(rest[:idx], "/")
	}

	return rp, nil
}

// Parse extracts run metadata from a storage path. Both s3:// URLs and
// plain key prefixes are accepted.
func Parse(path string) (*RunPath, error) {
	trimmed := strings.TrimRight(path, "/")

	rp := &RunPath{}

	rest := trimmed
	if m := bucketPattern.FindStringSubmatch(trimmed); m != nil {
		rp.Bucket = m[1]
		rest = m[2]
	}

	m := withRunTypePattern.FindStringSubmatch(rest)
	if m == nil {
		m = directPattern.FindStringSubmatch(rest)
	}

	if m == nil {
		return nil, fmt.Errorf(
			"invalid run path %q: expected .../engine=X/cluster_size=Y/benchmark=Z/run_type=W/",
			path,
		)
	}

	rp.Engine = m[1]
	rp.ClusterSize = m[2]
	rp.Benchmark = m[3]
	rp.RunType = m[4]
	rp.RunID = m[5]

	if idx := strings.Index(rest, "engine="); idx > 0 {
		rp.Prefix = strings.TrimRight(rest[:idx], "/")
	}

	switch {
	case strings.HasPrefix(rp.RunType, "concurrency_"):
		n, err := strconv.Atoi(strings.TrimPrefix(rp.RunType, "concurrency_"))
		if err != nil {
			return nil, fmt.Errorf("invalid concurrency in run type %q", rp.RunType)
		}

		rp.Concurrency = n
	case rp.RunType == RunTypeSequential:
		rp.Concurrency = 1
		rp.IsSequential = true
	}

	return rp, nil
}

// Cores returns the total core count of the cluster size using the
// given table, falling back to the default table when nil. Unknown
// sizes return 0.
func (rp *RunPath) Cores(table map[string]int) int {
	if table == nil {
		table = DefaultCores
	}

	return table[rp.ClusterSize]
}

// Identity converts the parsed path into a run identity.
func (rp *RunPath) Identity() summary.RunIdentity {
	return summary.RunIdentity{
		Engine:      rp.Engine,
		ClusterSize: rp.ClusterSize,
		Benchmark:   rp.Benchmark,
		RunType:     rp.RunType,
		Concurrency: rp.Concurrency,
		RunID:       rp.RunID,
	}
}

// Key renders the partitioned key of the run relative to the bucket.
func (rp *RunPath) Key() string {
	parts := make([]string, 0, 6)

	if rp.Prefix != "" {
		parts = append(parts, rp.Prefix)
	}

	parts = append(parts,
		"engine="+rp.Engine,
		"cluster_size="+rp.ClusterSize,
		"benchmark="+rp.Benchmark,
		"run_type="+rp.RunType,
	)

	if rp.RunID != "" {
		parts = append(parts, "run_id="+rp.RunID)
	}

	return strings.Join(parts, "/")
}

// String renders the path the way reports reference runs.
func (rp *RunPath) String() string {
	return fmt.Sprintf("%s %s (%s)", rp.Engine, rp.ClusterSize, rp.RunType)
}
