// Package calibration maps target wavelengths to wavelength-stage positions.
package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrOutOfRange is matched by every RangeError.
var ErrOutOfRange = errors.New("outside of calibration range")

// RangeError reports a wavelength the table cannot place on the stage.
type RangeError struct {
	Wavelength int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%dnm outside of calibration range", e.Wavelength)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Entry is one verified calibration point.
type Entry struct {
	Wavelength int    // nm
	PEMCode    string // modulator wavelength code, e.g. "08000"
	Position   int32  // stage position
}

// Table is an ordered calibration table with strictly increasing wavelengths.
type Table struct {
	entries []Entry
}

// New builds a table from entries, which must be ordered by strictly
// increasing wavelength.
func New(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, errors.New("calibration table is empty")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Wavelength <= entries[i-1].Wavelength {
			return nil, fmt.Errorf("calibration wavelengths not strictly increasing at entry %d (%dnm after %dnm)",
				i+1, entries[i].Wavelength, entries[i-1].Wavelength)
		}
	}
	t := &Table{entries: make([]Entry, len(entries))}
	copy(t.entries, entries)
	return t, nil
}

// PEMCode formats the modulator code for a wavelength: "0" + wl + "0".
func PEMCode(wavelength int) string {
	return "0" + strconv.Itoa(wavelength) + "0"
}

// Parse reads "<wavelength>,<position>" lines. Blank lines are skipped.
func Parse(r io.Reader) (*Table, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		parts := strings.Split(text, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 comma-separated values, got %d", line, len(parts))
		}
		wlStr := strings.TrimSpace(parts[0])
		wl, err := strconv.Atoi(wlStr)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid wavelength", line)
		}
		pos, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid position", line)
		}

		entries = append(entries, Entry{
			Wavelength: wl,
			PEMCode:    "0" + wlStr + "0",
			Position:   int32(pos),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read calibration table")
	}

	return New(entries)
}

// Load reads a calibration table from a file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open calibration table %s", path)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "calibration table %s", path)
	}
	return t, nil
}

// Entries returns a copy of the table entries.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// First returns the lowest-wavelength entry.
func (t *Table) First() Entry {
	return t.entries[0]
}

// Lookup returns the stage position for wavelength: the stored position on an
// exact match, otherwise a floor-rounded linear interpolation between the
// first pair of entries strictly bracketing it.
func (t *Table) Lookup(wavelength int) (int32, error) {
	for _, e := range t.entries {
		if e.Wavelength == wavelength {
			return e.Position, nil
		}
	}

	for i := 0; i+1 < len(t.entries); i++ {
		lo, hi := t.entries[i], t.entries[i+1]
		if wavelength > lo.Wavelength && wavelength < hi.Wavelength {
			slope := (float64(hi.Position) - float64(lo.Position)) / float64(hi.Wavelength-lo.Wavelength)
			pos := math.Floor(float64(lo.Position) + slope*float64(wavelength-lo.Wavelength))
			return int32(pos), nil
		}
	}

	return 0, &RangeError{Wavelength: wavelength}
}

// ComputePosition is the closed-form stage position used when no calibration
// table is available.
func ComputePosition(wavelength int) int32 {
	wl := float64(wavelength)
	if wavelength < 795 {
		return int32(math.Floor(532.1996*wl - 3.6524))
	}
	return int32(math.Floor(194.8846*wl - 97096))
}
