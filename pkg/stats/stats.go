// Package stats collects per-chunk throughput samples during a run and
// reduces them to a summary once the run is over.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pkg/errors"

	"github.com/mercury131/ps-disk-speed-tester/pkg/units"
)

// minElapsed floors per-write timings. Small writes the page cache
// absorbs can complete in under a microsecond, and dividing by a raw
// zero would turn the sample into +Inf.
const minElapsed = 1e-6 // seconds

// ErrNoSamples reports a summary request over an empty recording.
var ErrNoSamples = errors.New("no throughput samples recorded")

// Recorder accumulates one throughput sample per chunk write, in write
// order, plus an HDR histogram of the chunk latencies.
type Recorder struct {
	samples []float64
	hist    *hdrhistogram.Histogram
}

// NewRecorder returns an empty Recorder tracking latencies from 1us to
// 60s at 3 significant digits.
func NewRecorder() *Recorder {
	return &Recorder{hist: hdrhistogram.New(1, 60000000, 3)}
}

// Record adds the sample for one write of n bytes that took elapsed,
// and returns the speed it computed in MB/s.
func (r *Recorder) Record(n int, elapsed time.Duration) float64 {
	sec := elapsed.Seconds()
	if sec < minElapsed {
		sec = minElapsed
	}
	speed := units.ToMB(int64(n)) / sec
	r.samples = append(r.samples, speed)
	_ = r.hist.RecordValue(elapsed.Microseconds())
	return speed
}

// Count returns the number of recorded samples.
func (r *Recorder) Count() int { return len(r.samples) }

// Samples returns the recorded speeds in write order. The slice is the
// recorder's own; callers must not mutate it.
func (r *Recorder) Samples() []float64 { return r.samples }

// Summary is the digested outcome of one finished run. All speed and
// size figures are rounded to two decimals.
type Summary struct {
	SizeGB    float64       `json:"size_gb"`
	Duration  time.Duration `json:"duration_ns"`
	AvgMBs    float64       `json:"avg_mbs"`
	MaxMBs    float64       `json:"max_mbs"`
	MinMBs    float64       `json:"min_mbs"`
	MedianMBs float64       `json:"median_mbs"`

	BytesWritten int64         `json:"bytes_written"`
	Chunks       int           `json:"chunks"`
	MeanLatency  time.Duration `json:"mean_latency_ns"`
	P50Latency   time.Duration `json:"p50_latency_ns"`
	P99Latency   time.Duration `json:"p99_latency_ns"`
}

// Summarize reduces a finished recording. requested is the byte count
// the run was asked for and wall the time the whole run took.
//
// The average is requested data over wall time, not the mean of the
// samples: a run that spends most of its time on a few slow chunks
// must report the slow figure. Median takes the upper middle element
// of the sorted samples when the count is even.
func Summarize(rec *Recorder, requested, bytesWritten int64, wall time.Duration) (*Summary, error) {
	if rec == nil || len(rec.samples) == 0 {
		return nil, ErrNoSamples
	}

	sorted := append([]float64(nil), rec.samples...)
	sort.Float64s(sorted)

	sec := wall.Seconds()
	if sec < minElapsed {
		sec = minElapsed
	}

	return &Summary{
		SizeGB:       round2(units.ToGB(requested)),
		Duration:     wall,
		AvgMBs:       round2(units.ToMB(requested) / sec),
		MaxMBs:       round2(sorted[len(sorted)-1]),
		MinMBs:       round2(sorted[0]),
		MedianMBs:    round2(sorted[len(sorted)/2]),
		BytesWritten: bytesWritten,
		Chunks:       len(rec.samples),
		MeanLatency:  time.Duration(rec.hist.Mean()) * time.Microsecond,
		P50Latency:   time.Duration(rec.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99Latency:   time.Duration(rec.hist.ValueAtQuantile(99)) * time.Microsecond,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
