package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Batch holds the parsed records of one run in arrival order, together
// with parse and classification bookkeeping. Arrival order is
// significant: warmup windowing and failure-streak detection depend
// on it.
type Batch struct {
	Records []Record

	// SkippedRows counts rows that could not be parsed. Malformed rows
	// are never fatal; they are skipped and surfaced here so reports
	// can show them.
	SkippedRows int

	BootstrapCount      int
	ControlSamplerCount int
	RealCount           int
}

// RealRecords returns the records classified as real benchmark queries,
// preserving arrival order.
func (b *Batch) RealRecords() []Record {
	real := make([]Record, 0, b.RealCount)

	for _, r := range b.Records {
		if r.Role == RoleReal {
			real = append(real, r)
		}
	}

	return real
}

// Ingestor parses raw load-driver result files (JMeter JTL CSV) into
// classified record batches. It holds no state between calls.
type Ingestor struct {
	log        logrus.FieldLogger
	classifier *Classifier
}

// NewIngestor creates an Ingestor with the given classifier config.
func NewIngestor(log logrus.FieldLogger, cfg ClassifierConfig) *Ingestor {
	return &Ingestor{
		log:        log.WithField("component", "ingestor"),
		classifier: NewClassifier(cfg),
	}
}

// columnIndex maps the columns we consume to their position in the
// header row. Required columns are -1 until found.
type columnIndex struct {
	timestamp     int
	elapsed       int
	label         int
	responseCode  int
	responseMsg   int
	success       int
	bytesReceived int
	bytesSent     int
	allThreads    int
	latency       int
	connect       int
}

// headerNames are the JMeter CSV header names for each consumed column.
// Matching is case-insensitive since exporters disagree on casing.
var headerNames = map[string]func(*columnIndex, int){
	"timestamp":       func(c *columnIndex, i int) { c.timestamp = i },
	"elapsed":         func(c *columnIndex, i int) { c.elapsed = i },
	"label":           func(c *columnIndex, i int) { c.label = i },
	"responsecode":    func(c *columnIndex, i int) { c.responseCode = i },
	"responsemessage": func(c *columnIndex, i int) { c.responseMsg = i },
	"success":         func(c *columnIndex, i int) { c.success = i },
	"bytes":           func(c *columnIndex, i int) { c.bytesReceived = i },
	"sentbytes":       func(c *columnIndex, i int) { c.bytesSent = i },
	"allthreads":      func(c *columnIndex, i int) { c.allThreads = i },
	"latency":         func(c *columnIndex, i int) { c.latency = i },
	"connect":         func(c *columnIndex, i int) { c.connect = i },
}

func parseHeader(header []string) (*columnIndex, error) {
	cols := &columnIndex{
		timestamp: -1, elapsed: -1, label: -1, responseCode: -1,
		responseMsg: -1, success: -1, bytesReceived: -1, bytesSent: -1,
		allThreads: -1, latency: -1, connect: -1,
	}

	for i, name := range header {
		if set, ok := headerNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			set(cols, i)
		}
	}

	if cols.timestamp < 0 || cols.elapsed < 0 || cols.label < 0 || cols.success < 0 {
		return nil, fmt.Errorf(
			"result file header missing required columns (need timeStamp, elapsed, label, success): %v",
			header,
		)
	}

	return cols, nil
}

// ParseFile reads and parses a result file from disk.
func (in *Ingestor) ParseFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening result file: %w", err)
	}
	defer func() { _ = f.Close() }()

	batch, err := in.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return batch, nil
}

// Parse reads CSV rows from r and returns the classified batch.
// Malformed rows are skipped and counted. Zero valid rows is a valid,
// non-error outcome; downstream summarization flags it as no_data.
func (in *Ingestor) Parse(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // error messages may embed commas unevenly

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return &Batch{}, nil
		}

		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Records: make([]Record, 0, 256)}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			// Structurally broken row (bare quote etc). Skip it.
			batch.SkippedRows++

			continue
		}

		rec, ok := in.parseRow(cols, row)
		if !ok {
			batch.SkippedRows++

			continue
		}

		batch.Records = append(batch.Records, rec)

		switch rec.Role {
		case RoleBootstrap:
			batch.BootstrapCount++
		case RoleControlSampler:
			batch.ControlSamplerCount++
		default:
			batch.RealCount++
		}
	}

	if batch.SkippedRows > 0 {
		in.log.WithFields(logrus.Fields{
			"skipped": batch.SkippedRows,
			"parsed":  len(batch.Records),
		}).Warn("Skipped malformed result rows")
	}

	return batch, nil
}

// parseRow converts one CSV row into a Record. Returns false when the
// row is malformed (non-numeric timestamp/elapsed, missing label).
func (in *Ingestor) parseRow(cols *columnIndex, row []string) (Record, bool) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}

		return row[idx]
	}

	ts, err := strconv.ParseInt(field(cols.timestamp), 10, 64)
	if err != nil {
		return Record{}, false
	}

	elapsed, err := strconv.ParseInt(field(cols.elapsed), 10, 64)
	if err != nil {
		return Record{}, false
	}

	label := field(cols.label)
	if label == "" {
		return Record{}, false
	}

	rec := Record{
		Timestamp:       ts,
		Elapsed:         elapsed,
		Label:           label,
		ResponseCode:    field(cols.responseCode),
		ResponseMessage: field(cols.responseMsg),
		Success:         strings.EqualFold(field(cols.success), "true"),
		Role:            in.classifier.Classify(label),
	}

	// Optional numeric fields default to 0 when absent or malformed.
	rec.BytesReceived, _ = strconv.ParseInt(field(cols.bytesReceived), 10, 64)
	rec.BytesSent, _ = strconv.ParseInt(field(cols.bytesSent), 10, 64)
	rec.Latency, _ = strconv.ParseInt(field(cols.latency), 10, 64)
	rec.ConnectTime, _ = strconv.ParseInt(field(cols.connect), 10, 64)
	rec.ActiveThreads, _ = strconv.Atoi(field(cols.allThreads))

	return rec, true
}
