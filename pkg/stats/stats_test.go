package stats

import (
	"errors"
	"math"
	"testing"
	"time"
)

func makeRecorder(speeds ...float64) *Recorder {
	r := NewRecorder()
	r.samples = append(r.samples, speeds...)
	return r
}

func TestRecordComputesSpeed(t *testing.T) {
	r := NewRecorder()
	got := r.Record(1<<20, 100*time.Millisecond)
	if got != 10 {
		t.Errorf("Record(1MiB, 100ms) = %v MB/s, want 10", got)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRecordFloorsElapsed(t *testing.T) {
	r := NewRecorder()
	got := r.Record(1<<20, 0)
	if math.IsInf(got, 1) || math.IsNaN(got) {
		t.Fatalf("Record with zero elapsed produced %v", got)
	}
	// Floored at one microsecond: 1 MiB / 1e-6 s.
	if got != 1e6 {
		t.Errorf("Record(1MiB, 0) = %v MB/s, want 1e6", got)
	}
}

func TestRecordKeepsOrder(t *testing.T) {
	r := NewRecorder()
	r.Record(1<<20, 100*time.Millisecond) // 10 MB/s
	r.Record(1<<20, 200*time.Millisecond) // 5 MB/s
	r.Record(1<<20, 50*time.Millisecond)  // 20 MB/s
	want := []float64{10, 5, 20}
	got := r.Samples()
	if len(got) != len(want) {
		t.Fatalf("Samples() has %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Samples()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSummarizeAverageIsWholeRun(t *testing.T) {
	// The average must come from requested bytes over wall time, not
	// from averaging the per-chunk samples.
	r := makeRecorder(10, 30, 20)
	s, err := Summarize(r, 300<<20, 300<<20, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if s.AvgMBs != 150 {
		t.Errorf("AvgMBs = %v, want 150", s.AvgMBs)
	}
	if s.MaxMBs != 30 || s.MinMBs != 10 {
		t.Errorf("Max/Min = %v/%v, want 30/10", s.MaxMBs, s.MinMBs)
	}
	if s.SizeGB != 0.29 {
		t.Errorf("SizeGB = %v, want 0.29", s.SizeGB)
	}
	if s.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", s.Chunks)
	}
}

func TestSummarizeMedian(t *testing.T) {
	cases := []struct {
		speeds []float64
		want   float64
	}{
		{[]float64{10, 30, 20}, 20},
		// Even count takes the upper of the two middle values.
		{[]float64{40, 10, 30, 20}, 30},
		{[]float64{7}, 7},
		{[]float64{5, 5, 5, 5}, 5},
	}
	for _, c := range cases {
		s, err := Summarize(makeRecorder(c.speeds...), 1<<20, 1<<20, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if s.MedianMBs != c.want {
			t.Errorf("median of %v = %v, want %v", c.speeds, s.MedianMBs, c.want)
		}
	}
}

func TestSummarizeKeepsSampleOrder(t *testing.T) {
	r := makeRecorder(10, 30, 20)
	if _, err := Summarize(r, 1<<20, 1<<20, time.Second); err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 30, 20}
	for i, v := range r.Samples() {
		if v != want[i] {
			t.Errorf("Samples()[%d] = %v after Summarize, want %v", i, v, want[i])
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if _, err := Summarize(NewRecorder(), 1<<20, 0, time.Second); !errors.Is(err, ErrNoSamples) {
		t.Errorf("empty recorder: want ErrNoSamples, got %v", err)
	}
	if _, err := Summarize(nil, 1<<20, 0, time.Second); !errors.Is(err, ErrNoSamples) {
		t.Errorf("nil recorder: want ErrNoSamples, got %v", err)
	}
}

func TestSummarizeFloorsWall(t *testing.T) {
	s, err := Summarize(makeRecorder(1), 1<<20, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsInf(s.AvgMBs, 1) || math.IsNaN(s.AvgMBs) {
		t.Errorf("AvgMBs with zero wall time = %v", s.AvgMBs)
	}
}

func TestSummarizeLatencies(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 100; i++ {
		r.Record(4096, 10*time.Millisecond)
	}
	s, err := Summarize(r, 400*4096, 400*4096, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	// The histogram keeps 3 significant digits, so allow a small skew.
	if s.P50Latency < 9*time.Millisecond || s.P50Latency > 11*time.Millisecond {
		t.Errorf("P50Latency = %v, want about 10ms", s.P50Latency)
	}
	if s.MeanLatency < 9*time.Millisecond || s.MeanLatency > 11*time.Millisecond {
		t.Errorf("MeanLatency = %v, want about 10ms", s.MeanLatency)
	}
}
