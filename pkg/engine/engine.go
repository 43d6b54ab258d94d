// Package engine creates the target file and performs the timed chunk
// writes. It knows nothing about flags or presentation; callers hand it
// Params and read the measurements back out of the Result.
package engine

import (
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/mercury131/ps-disk-speed-tester/pkg/log"
	"github.com/mercury131/ps-disk-speed-tester/pkg/stats"
	"github.com/mercury131/ps-disk-speed-tester/pkg/units"
)

var (
	// ErrEmptySize rejects zero-byte runs before any file I/O happens.
	ErrEmptySize = errors.New("requested size is zero")

	// ErrTargetExists is returned when the destination already exists
	// and overwriting was not requested. The file is left untouched.
	ErrTargetExists = errors.New("target file already exists")

	// ErrCanceled is returned when the run was aborted between chunks.
	ErrCanceled = errors.New("run canceled")
)

// chunkWriter is the backend a run writes through. *os.File satisfies
// it directly; the io_uring backend wraps one.
type chunkWriter interface {
	WriteAt(b []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Engine executes generation runs.
type Engine struct {
	log log.Logger
}

func New(logger log.Logger) *Engine {
	return &Engine{log: logger}
}

// Run executes one generation run. Exactly one write is in flight at
// any time, so the samples it records reflect the device rather than
// queueing effects.
//
// The elapsed time in the Result covers the writes alone. Target
// preflight and file open happen before the clock starts, and the
// optional fsync is measured only when Params.Fsync asks for it.
func (e *Engine) Run(p Params) (res *Result, err error) {
	if p.ChunkSize <= 0 {
		p.ChunkSize = DefaultChunkSize
	}
	if p.Data == "" {
		p.Data = DataRandom
	}
	if p.Mode == "" {
		p.Mode = ModeSequential
	}
	if p.Engine == "" {
		p.Engine = EngineSync
	}

	if p.Size <= 0 {
		return nil, errors.Wrapf(ErrEmptySize, "requested %d bytes", p.Size)
	}
	filler, err := NewFiller(p.Data)
	if err != nil {
		return nil, err
	}
	if p.Mode != ModeSequential && p.Mode != ModeRandom {
		return nil, errors.Errorf("unknown write mode %q", p.Mode)
	}

	if err := checkTarget(p.Path, p.Overwrite); err != nil {
		return nil, err
	}
	dir := filepath.Dir(p.Path)
	avail, serr := freeSpace(dir)
	if serr != nil {
		return nil, errors.Wrapf(serr, "stat filesystem at %s", dir)
	}
	if avail >= 0 {
		need := p.Size
		if fi, ferr := os.Stat(p.Path); ferr == nil {
			// Overwriting releases the blocks the old file holds.
			need -= fi.Size()
		}
		if need > avail {
			return nil, errors.Errorf("not enough free space in %s: need %s, have %s",
				dir, units.FormatBytes(p.Size), units.FormatBytes(avail))
		}
	}

	w, err := openWriter(p.Path, p.Engine)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", p.Path)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", p.Path)
			res = nil
		}
	}()

	e.log.Debugf("run start: path=%s size=%d chunk=%d mode=%s data=%s engine=%s",
		p.Path, p.Size, p.ChunkSize, p.Mode, p.Data, p.Engine)

	rec := stats.NewRecorder()
	start := time.Now()

	var written int64
	var chunks int
	switch p.Mode {
	case ModeSequential:
		written, chunks, err = e.runSequential(w, p, filler, rec, start)
	case ModeRandom:
		written, chunks, err = e.runRandom(w, p, filler, rec, start)
	}
	if err != nil {
		return nil, err
	}

	if p.Fsync {
		if serr := w.Sync(); serr != nil {
			return nil, errors.Wrapf(serr, "fsync %s", p.Path)
		}
	}
	elapsed := time.Since(start)

	e.log.Debugf("run done: wrote %d bytes in %d chunks over %v", written, chunks, elapsed)

	return &Result{
		Path:           p.Path,
		Mode:           p.Mode,
		Data:           p.Data,
		ChunkSize:      p.ChunkSize,
		BytesRequested: p.Size,
		BytesWritten:   written,
		Chunks:         chunks,
		Elapsed:        elapsed,
		Samples:        rec,
	}, nil
}

// runSequential writes chunks back to back from offset 0. The last
// chunk shrinks so coverage lands exactly on Size.
func (e *Engine) runSequential(w chunkWriter, p Params, filler Filler, rec *stats.Recorder, start time.Time) (int64, int, error) {
	buf := make([]byte, p.ChunkSize)
	var written int64
	var chunks int
	for written < p.Size {
		if err := canceled(p.Cancel); err != nil {
			return written, chunks, err
		}
		n := p.ChunkSize
		if rest := p.Size - written; rest < int64(n) {
			n = int(rest)
		}
		if err := filler.Fill(buf[:n]); err != nil {
			return written, chunks, err
		}
		t0 := time.Now()
		nw, err := w.WriteAt(buf[:n], written)
		d := time.Since(t0)
		if err != nil {
			return written, chunks, errors.Wrapf(err, "write chunk %d at offset %d", chunks, written)
		}
		speed := rec.Record(nw, d)
		written += int64(nw)
		chunks++
		e.report(p, chunks, written, p.Size, speed, start)
	}
	return written, chunks, nil
}

// runRandom performs ceil(Size/ChunkSize) full-chunk writes at offsets
// drawn independently from [0, Size-chunk]. Offsets may repeat, so the
// file is truncated to its final length up front; the write pattern
// exercises the device, the truncate guarantees the size.
func (e *Engine) runRandom(w chunkWriter, p Params, filler Filler, rec *stats.Recorder, start time.Time) (int64, int, error) {
	chunk := p.ChunkSize
	if int64(chunk) > p.Size {
		// The whole file is smaller than one chunk; every write covers
		// it fully from offset 0.
		chunk = int(p.Size)
	}
	// Ceiling division, written so sizes near the int64 limit cannot
	// overflow the intermediate sum.
	iterations := int((p.Size-1)/int64(p.ChunkSize) + 1)
	span := p.Size - int64(chunk)
	total := int64(iterations) * int64(chunk)

	if err := w.Truncate(p.Size); err != nil {
		return 0, 0, errors.Wrapf(err, "truncate to %d bytes", p.Size)
	}

	buf := make([]byte, chunk)
	var written int64
	for i := 0; i < iterations; i++ {
		if err := canceled(p.Cancel); err != nil {
			return written, i, err
		}
		off, err := randomOffset(span)
		if err != nil {
			return written, i, err
		}
		if err := filler.Fill(buf); err != nil {
			return written, i, err
		}
		t0 := time.Now()
		nw, err := w.WriteAt(buf, off)
		d := time.Since(t0)
		if err != nil {
			return written, i, errors.Wrapf(err, "write chunk %d at offset %d", i, off)
		}
		speed := rec.Record(nw, d)
		written += int64(nw)
		e.report(p, i+1, written, total, speed, start)
	}
	return written, iterations, nil
}

func (e *Engine) report(p Params, chunks int, written, total int64, lastMBs float64, start time.Time) {
	if p.Progress == nil {
		return
	}
	p.Progress(Progress{
		Chunks:       chunks,
		BytesWritten: written,
		BytesTotal:   total,
		LastMBs:      lastMBs,
		Elapsed:      time.Since(start),
	})
}

func canceled(ch <-chan struct{}) error {
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return ErrCanceled
	default:
		return nil
	}
}

// checkTarget enforces the overwrite guard before the destination is
// touched in any way.
func checkTarget(path string, overwrite bool) error {
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		if fi.IsDir() {
			return errors.Errorf("target %s is a directory", path)
		}
		if !overwrite {
			return errors.Wrapf(ErrTargetExists, "%s", path)
		}
		return nil
	case os.IsNotExist(err):
		return nil
	}
	return errors.Wrapf(err, "stat %s", path)
}

// randomOffset draws uniformly from [0, span] using the OS CSPRNG,
// independent of whatever the filler produces. A span of zero means
// the file is no larger than one chunk, so the only offset is 0.
func randomOffset(span int64) (int64, error) {
	if span <= 0 {
		return 0, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return 0, errors.Wrap(err, "draw write offset")
	}
	return n.Int64(), nil
}

func openWriter(path, engineType string) (chunkWriter, error) {
	switch engineType {
	case EngineSync:
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, err
		}
		return f, nil
	case EngineUring:
		return openUring(path)
	}
	return nil, errors.Errorf("unknown engine %q", engineType)
}
