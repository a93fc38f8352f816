// Package testutil provides shared test infrastructure for the simulator.
// It holds the golden transition dataset, scripted coin sources and
// histogram assertions used across sim/ and its sub-package tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/transitions.json.
type GoldenDataset struct {
	Transitions []GoldenTransition `json:"transitions"`
}

// GoldenAgent mirrors the four Agent fields.
type GoldenAgent struct {
	Timer        uint32 `json:"timer"`
	Max          uint32 `json:"max"`
	LastMax      uint32 `json:"last_max"`
	Interactions uint32 `json:"interactions"`
}

// GoldenTransition is one initiator/responder pair, the coin flips consumed
// by any amplified draws, and the expected initiator afterwards.
type GoldenTransition struct {
	Name      string      `json:"name"`
	U         GoldenAgent `json:"u"`
	V         GoldenAgent `json:"v"`
	Coins     []int       `json:"coins"`
	Want      GoldenAgent `json:"want"`
	Resamples int64       `json:"resamples"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ up to testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "transitions.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// ScriptedSource replays a fixed sequence of draws, then returns Fallback
// forever. With Fallback 1 every geometric trial past the script stops on
// its first flip.
type ScriptedSource struct {
	Draws    []int
	Fallback int
	Used     int
}

// NewScriptedSource creates a source replaying draws then returning 1.
func NewScriptedSource(draws ...int) *ScriptedSource {
	return &ScriptedSource{Draws: draws, Fallback: 1}
}

// Intn returns the next scripted draw; n is ignored.
func (s *ScriptedSource) Intn(n int) int {
	s.Used++
	if len(s.Draws) == 0 {
		return s.Fallback
	}
	d := s.Draws[0]
	s.Draws = s.Draws[1:]
	return d
}

// AssertHistogramSum fails the test unless buckets sums to want.
func AssertHistogramSum(t *testing.T, name string, buckets []int64, want int64) {
	t.Helper()
	var sum int64
	for _, c := range buckets {
		sum += c
	}
	if sum != want {
		t.Errorf("%s: histogram sums to %d, want %d", name, sum, want)
	}
}
