package trajectory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/systems/physics"
	"github.com/zeusync/finder/internal/sim"
)

var ErrNotOpen = errors.New("trajectory writer has no open run")

// Step is one JSONL line of a trajectory.
type Step struct {
	Run         string            `json:"run"`
	Agent       string            `json:"agent"`
	Episode     uint64            `json:"episode"`
	Tick        uint64            `json:"tick"`
	Time        float64           `json:"time"`
	Action      [2]int            `json:"action"`
	Reward      float64           `json:"reward"`
	Done        bool              `json:"done"`
	Truncated   bool              `json:"truncated"`
	Outcome     agent.Outcome     `json:"outcome"`
	Contacts    []physics.Contact `json:"contacts,omitempty"`
	Observation sim.Observation   `json:"observation"`
}

// Writer appends zstd-compressed JSONL to one file per run. Safe for
// concurrent use.
type Writer struct {
	baseDir string
	prefix  string

	mu     sync.Mutex
	curRun string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

// Rotate closes the current file and opens the one for run.
func (w *Writer) Rotate(run string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if run == w.curRun && w.f != nil {
		return nil
	}
	return w.rotateLocked(run)
}

func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return ErrNotOpen
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) WriteStep(s Step) error { return w.Write(s) }

// Flush pushes buffered lines through the compressor to the file, so a reader
// sees every step written so far.
func (w *Writer) Flush(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Path returns the file a run is written to.
func (w *Writer) Path(run string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, run))
}

func (w *Writer) rotateLocked(run string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.Path(run), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curRun = run
	return nil
}

func (w *Writer) closeLocked() error {
	var errs []error
	if w.w != nil {
		errs = append(errs, w.w.Flush())
	}
	if w.enc != nil {
		errs = append(errs, w.enc.Close())
		w.enc = nil
	}
	if w.f != nil {
		errs = append(errs, w.f.Close())
		w.f = nil
	}
	w.w = nil
	w.curRun = ""
	return errors.Join(errs...)
}
