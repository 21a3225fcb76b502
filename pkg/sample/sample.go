// Package sample turns raw lock-in snapshots into per-wavelength results.
package sample

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyBatch is returned when a batch holds no usable snapshot.
var ErrEmptyBatch = errors.New("no usable snapshots in batch")

// Snapshot is one simultaneous reading of the four lock-in data slots.
type Snapshot struct {
	Timestamp time.Time
	AC        float64 // X (V)
	R         float64 // Signal magnitude (V)
	XN        float64 // Noise estimate (V)
	DC        float64 // Auxiliary input 3 (V)
}

// ParseSnapshot parses "<ac>,<r>,<xn>,<dc>" with optional trailing CR/LF.
func ParseSnapshot(text string) (Snapshot, error) {
	fields := strings.Split(strings.TrimSpace(text), ",")
	if len(fields) != 4 {
		return Snapshot{}, fmt.Errorf("snapshot %q has %d fields, expected 4", text, len(fields))
	}

	var vals [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot %q field %d: %w", text, i+1, err)
		}
		vals[i] = v
	}

	return Snapshot{
		AC: vals[0],
		R:  vals[1],
		XN: vals[2],
		DC: vals[3],
	}, nil
}

// Result is the aggregated measurement at one wavelength.
type Result struct {
	Wavelength int
	Signal     float64 // Mean DC-corrected AC (V)
	Noise      float64 // Population standard deviation of the corrected AC (V)
	DC         float64 // Mean DC (V)
	Samples    int     // Snapshots used
	Dropped    int     // Snapshots discarded for a zero DC reading
}

// Aggregate normalizes every AC reading to the batch mean DC
// (ac * mean(dc) / dc) and returns the mean and population standard
// deviation of the corrected values. Snapshots with a zero DC reading cannot
// be corrected and are dropped before any statistic is computed.
func Aggregate(batch []Snapshot) (Result, error) {
	ac := make([]float64, 0, len(batch))
	dc := make([]float64, 0, len(batch))
	for _, s := range batch {
		if s.DC == 0 {
			continue
		}
		ac = append(ac, s.AC)
		dc = append(dc, s.DC)
	}

	res := Result{
		Samples: len(ac),
		Dropped: len(batch) - len(ac),
	}
	if len(ac) == 0 {
		return res, ErrEmptyBatch
	}

	res.DC = stat.Mean(dc, nil)

	corrected := make([]float64, len(ac))
	for i := range ac {
		corrected[i] = ac[i] * res.DC / dc[i]
	}
	res.Signal, res.Noise = stat.PopMeanStdDev(corrected, nil)

	return res, nil
}
