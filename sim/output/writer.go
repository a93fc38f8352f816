// Package output persists simulator snapshots as delimited text records.
//
// A file starts with the header line
//
//	time;timer;max;estimate;interactions;resamples;n
//
// followed by one line per snapshot: the time label, the four histograms
// as comma-terminated bucket lists, the resample count and the population
// size, all separated by ';'.
//
// Every histogram has bound+1 buckets so the bound itself is countable:
// timer and interactions carry sim.MaxTimeSize+1 columns, max and estimate
// sim.MaxSize+1.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/popsim/popsim/sim"
)

// Header is the first line of every snapshot file.
const Header = "time;timer;max;estimate;interactions;resamples;n"

// Extension returns the file extension for the chosen compression.
func Extension(compress bool) string {
	if compress {
		return ".csv.zst"
	}
	return ".csv"
}

// TrialName returns the base file name for one trial, without extension.
func TrialName(randomMax, n, id int, adversarial bool) string {
	name := fmt.Sprintf("random_max=%d_n=%d_%d", randomMax, n, id)
	if adversarial {
		name += "_adversary"
	}
	return name
}

// Writer appends snapshot records to an underlying stream.
// It implements sim.SnapshotSink. Not safe for concurrent use; each
// trial owns its own Writer.
type Writer struct {
	w   *bufio.Writer
	enc *zstd.Encoder
	c   io.Closer
}

// NewWriter writes uncompressed records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

// Create opens path for writing, truncating any previous content.
// With compress the stream is zstd-encoded.
func Create(path string, compress bool) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !compress {
		out := NewWriter(f)
		out.c = f
		return out, nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{
		w:   bufio.NewWriterSize(enc, 128*1024),
		enc: enc,
		c:   f,
	}, nil
}

// WriteHeader writes the column header line.
func (w *Writer) WriteHeader() error {
	if _, err := w.w.WriteString(Header + "\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteSnapshot appends one record.
func (w *Writer) WriteSnapshot(s sim.Snapshot) error {
	if _, err := w.w.WriteString(FormatSnapshot(s)); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes buffered data and closes the underlying file, if any.
func (w *Writer) Close() error {
	var first error
	if err := w.w.Flush(); err != nil {
		first = err
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil && first == nil {
			first = err
		}
		w.enc = nil
	}
	if w.c != nil {
		if err := w.c.Close(); err != nil && first == nil {
			first = err
		}
		w.c = nil
	}
	return first
}

// FormatSnapshot renders s as one newline-terminated record.
func FormatSnapshot(s sim.Snapshot) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(s.Time, 10))
	b.WriteByte(';')
	for _, f := range sim.Fields() {
		for _, c := range s.Histogram(f) {
			b.WriteString(strconv.FormatInt(c, 10))
			b.WriteByte(',')
		}
		b.WriteByte(';')
	}
	b.WriteString(strconv.FormatInt(s.Resamples, 10))
	b.WriteByte(';')
	b.WriteString(strconv.FormatInt(s.N, 10))
	b.WriteByte('\n')
	return b.String()
}

// Open returns a reader over a snapshot file, decoding zstd when the
// name ends in ".zst". The caller must close the result.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (r *zstdReadCloser) Read(p []byte) (int, error) { return r.dec.Read(p) }

func (r *zstdReadCloser) Close() error {
	r.dec.Close()
	return r.f.Close()
}
