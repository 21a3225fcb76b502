// Package store persists scan results.
package store

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/itohio/sscd/pkg/sample"
)

// Header is the first row of every result file.
var Header = []string{"wl", "signal", "noise", "dc"}

// CSV writes results as headered CSV rows.
type CSV struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSV writes the header to w.
func NewCSV(w io.Writer) (*CSV, error) {
	c := &CSV{w: csv.NewWriter(w)}
	if err := c.w.Write(Header); err != nil {
		return nil, errors.Wrap(err, "failed to write header")
	}
	return c, nil
}

// CreateCSV creates (or truncates) the result file at path.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}
	c, err := NewCSV(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

// Write appends one row and flushes it, so a run aborted later keeps every
// completed wavelength.
func (c *CSV) Write(r sample.Result) error {
	row := []string{
		strconv.Itoa(r.Wavelength),
		formatFloat(r.Signal),
		formatFloat(r.Noise),
		formatFloat(r.DC),
	}
	if err := c.w.Write(row); err != nil {
		return errors.Wrap(err, "failed to write result")
	}
	c.w.Flush()
	return errors.Wrap(c.w.Error(), "failed to flush result")
}

// Close flushes pending rows and closes the underlying file, if any.
func (c *CSV) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadCSV parses a result file written by CSV.
func ReadCSV(r io.Reader) ([]sample.Result, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read results")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	if rows[0][0] == Header[0] {
		rows = rows[1:]
	}

	results := make([]sample.Result, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(Header) {
			return nil, errors.Errorf("row %d: expected %d fields, got %d", i+1, len(Header), len(row))
		}
		var res sample.Result
		if res.Wavelength, err = strconv.Atoi(row[0]); err != nil {
			return nil, errors.Wrapf(err, "row %d: wavelength", i+1)
		}
		if res.Signal, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, errors.Wrapf(err, "row %d: signal", i+1)
		}
		if res.Noise, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, errors.Wrapf(err, "row %d: noise", i+1)
		}
		if res.DC, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, errors.Wrapf(err, "row %d: dc", i+1)
		}
		results = append(results, res)
	}
	return results, nil
}

// LoadCSV reads a result file from disk.
func LoadCSV(path string) ([]sample.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
