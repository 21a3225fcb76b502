package store

import (
	"time"

	"github.com/itohio/sscd/pkg/sample"
	"github.com/itohio/sscd/pkg/scan"
)

// Multi fans results out to several sinks in order.
type Multi []scan.RunSink

var (
	_ scan.RunSink  = Multi(nil)
	_ scan.Finisher = Multi(nil)
)

// Write stops at the first sink that fails.
func (m Multi) Write(r sample.Result) error {
	for _, s := range m {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Finish forwards to every sink that records completion.
func (m Multi) Finish(at time.Time) error {
	for _, s := range m {
		if f, ok := s.(scan.Finisher); ok {
			if err := f.Finish(at); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
