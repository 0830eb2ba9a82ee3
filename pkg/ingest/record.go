package ingest

import "strings"

// Role classifies what a raw result row represents.
type Role string

const (
	// RoleBootstrap marks connection/cache warm-up operations that are
	// excluded from performance statistics.
	RoleBootstrap Role = "bootstrap"

	// RoleControlSampler marks scripted helper samplers (query loading,
	// query selection) that are excluded from performance statistics.
	RoleControlSampler Role = "control_sampler"

	// RoleReal marks benchmark queries whose latency counts toward
	// performance metrics.
	RoleReal Role = "real"
)

// Record is a single parsed query execution row from a load-driver
// result file. Records are immutable once parsed.
type Record struct {
	Timestamp       int64  // epoch milliseconds
	Elapsed         int64  // milliseconds
	Label           string
	ResponseCode    string
	ResponseMessage string
	Success         bool
	BytesSent       int64
	BytesReceived   int64
	Latency         int64 // milliseconds
	ConnectTime     int64 // milliseconds
	ActiveThreads   int
	Role            Role
}

// ClassifierConfig defines the label markers used to classify rows.
// Empty fields fall back to the defaults.
type ClassifierConfig struct {
	BootstrapMarker      string `yaml:"bootstrap_marker"`
	ControlSamplerMarker string `yaml:"control_sampler_marker"`
}

const (
	// DefaultBootstrapMarker identifies connection warm-up samplers.
	DefaultBootstrapMarker = "BOOTSTRAP"

	// DefaultControlSamplerMarker identifies scripted control samplers.
	DefaultControlSamplerMarker = "JSR"
)

// Classifier derives record roles from labels.
type Classifier struct {
	bootstrap string
	control   string
}

// NewClassifier creates a Classifier from the given configuration.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	bootstrap := cfg.BootstrapMarker
	if bootstrap == "" {
		bootstrap = DefaultBootstrapMarker
	}

	control := cfg.ControlSamplerMarker
	if control == "" {
		control = DefaultControlSamplerMarker
	}

	return &Classifier{bootstrap: bootstrap, control: control}
}

// Classify returns the role for a raw sampler label.
func (c *Classifier) Classify(label string) Role {
	if strings.Contains(label, c.bootstrap) {
		return RoleBootstrap
	}

	if strings.Contains(label, c.control) {
		return RoleControlSampler
	}

	return RoleReal
}
