package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/popsim/popsim/sim"
)

// ReadSnapshots parses a snapshot stream written by Writer.
func ReadSnapshots(r io.Reader) ([]sim.Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty snapshot stream")
	}
	if sc.Text() != Header {
		return nil, fmt.Errorf("unexpected header %q", sc.Text())
	}
	var snaps []sim.Snapshot
	for line := 2; sc.Scan(); line++ {
		s, err := ParseSnapshot(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		snaps = append(snaps, s)
	}
	return snaps, sc.Err()
}

// ParseSnapshot parses one record produced by FormatSnapshot.
func ParseSnapshot(line string) (sim.Snapshot, error) {
	parts := strings.Split(strings.TrimSuffix(line, "\n"), ";")
	if len(parts) != 7 {
		return sim.Snapshot{}, fmt.Errorf("expected 7 fields, got %d", len(parts))
	}
	var s sim.Snapshot
	var err error
	if s.Time, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return sim.Snapshot{}, fmt.Errorf("time: %w", err)
	}
	hists := []*[]int64{&s.Timer, &s.Max, &s.LastMax, &s.Interactions}
	for i, h := range hists {
		if *h, err = parseBuckets(parts[i+1]); err != nil {
			return sim.Snapshot{}, fmt.Errorf("%s: %w", sim.Fields()[i], err)
		}
	}
	if s.Resamples, err = strconv.ParseInt(parts[5], 10, 64); err != nil {
		return sim.Snapshot{}, fmt.Errorf("resamples: %w", err)
	}
	if s.N, err = strconv.ParseInt(parts[6], 10, 64); err != nil {
		return sim.Snapshot{}, fmt.Errorf("n: %w", err)
	}
	return s, nil
}

func parseBuckets(field string) ([]int64, error) {
	items := strings.Split(strings.TrimSuffix(field, ","), ",")
	out := make([]int64, len(items))
	for i, item := range items {
		v, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
