package engine

import (
	"time"

	"github.com/mercury131/ps-disk-speed-tester/pkg/stats"
)

// Chunk contents.
const (
	DataRandom = "random"
	DataZero   = "zero"
)

// Write placement.
const (
	ModeSequential = "seq"
	ModeRandom     = "rand"
)

// Write backends.
const (
	EngineSync  = "sync"
	EngineUring = "uring"
)

// DefaultChunkSize is the per-write buffer length used when the caller
// does not set one.
const DefaultChunkSize = 1 << 20 // 1 MiB

// Params describes a single generation run.
type Params struct {
	Path      string // destination file
	Size      int64  // bytes the destination must end up with
	ChunkSize int    // bytes per write, DefaultChunkSize when 0
	Data      string // DataRandom or DataZero
	Mode      string // ModeSequential or ModeRandom
	Engine    string // EngineSync or EngineUring
	Overwrite bool   // allow replacing an existing file
	Fsync     bool   // flush to stable storage before the run ends

	// Progress, when set, is called after every chunk write. It runs on
	// the writing goroutine, so it must be cheap.
	Progress func(Progress)

	// Cancel, when closed, aborts the run at the next chunk boundary.
	Cancel <-chan struct{}
}

// Progress is a point-in-time view of a running generation.
type Progress struct {
	Chunks       int
	BytesWritten int64
	BytesTotal   int64
	LastMBs      float64
	Elapsed      time.Duration
}

// Result carries the raw measurements of a finished run.
type Result struct {
	Path           string
	Mode           string
	Data           string
	ChunkSize      int
	BytesRequested int64
	BytesWritten   int64
	Chunks         int
	Elapsed        time.Duration
	Samples        *stats.Recorder
}
