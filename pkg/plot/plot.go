// Package plot renders scan spectra to image files.
package plot

import (
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/itohio/sscd/pkg/sample"
	"github.com/itohio/sscd/pkg/scan"
)

const (
	width  = 10 * vg.Inch
	height = 6 * vg.Inch
)

var signalColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// Spectrum builds a plot of signal versus wavelength with the noise drawn as
// error bars.
func Spectrum(title string, results []sample.Result) (*plot.Plot, error) {
	if len(results) == 0 {
		return nil, errors.New("no results to plot")
	}

	pts := errorPoints{
		XYs:     make(plotter.XYs, len(results)),
		YErrors: make(plotter.YErrors, len(results)),
	}
	for i, r := range results {
		pts.XYs[i] = plotter.XY{X: float64(r.Wavelength), Y: r.Signal}
		pts.YErrors[i].Low = r.Noise
		pts.YErrors[i].High = r.Noise
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Wavelength (nm)"
	p.Y.Label.Text = "Signal (V)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts.XYs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create signal line")
	}
	line.Color = signalColor
	line.Width = vg.Points(1)

	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create noise bars")
	}
	bars.Color = signalColor

	p.Add(line, bars)
	p.Legend.Add("signal", line)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// Save renders the spectrum to path. The image format follows the file
// extension (png, svg, pdf...).
func Save(path, title string, results []sample.Result) error {
	p, err := Spectrum(title, results)
	if err != nil {
		return err
	}
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}

// WritePNG renders the spectrum as PNG to w.
func WritePNG(w io.Writer, title string, results []sample.Result) error {
	p, err := Spectrum(title, results)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return errors.Wrap(err, "failed to render plot")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "failed to write plot")
}

// ImagePath returns the image path next to a result file.
func ImagePath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".png"
}

// Sink collects the results of one scan and renders them when closed.
type Sink struct {
	path    string
	title   string
	results []sample.Result
}

var _ scan.RunSink = (*Sink)(nil)

// NewSink creates a sink rendering the scan of run next to its result file.
func NewSink(run scan.RunInfo) *Sink {
	return &Sink{
		path:  ImagePath(run.Path),
		title: filepath.Base(run.Path),
	}
}

// Write collects one result.
func (s *Sink) Write(r sample.Result) error {
	s.results = append(s.results, r)
	return nil
}

// Close renders whatever was collected. An empty scan renders nothing.
func (s *Sink) Close() error {
	if len(s.results) == 0 {
		return nil
	}
	return Save(s.path, s.title, s.results)
}
