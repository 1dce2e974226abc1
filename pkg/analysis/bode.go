package analysis

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// SaveBode writes a PNG with magnitude (dB) over phase (deg) of every
// response on a logarithmic ω axis.
func SaveBode(path, title string, responses ...Response) error {
	mag := plot.New()
	mag.Title.Text = title
	mag.Y.Label.Text = "|H| (dB)"
	phase := plot.New()
	phase.X.Label.Text = "ω (rad/s)"
	phase.Y.Label.Text = "∠H (deg)"

	for _, p := range []*plot.Plot{mag, phase} {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
		p.Add(plotter.NewGrid())
	}

	for i, r := range responses {
		db := r.MagnitudeDB()
		magXY := make(plotter.XYs, len(r.Omega))
		phaseXY := make(plotter.XYs, len(r.Omega))
		for k, w := range r.Omega {
			magXY[k] = plotter.XY{X: w, Y: db[k]}
			phaseXY[k] = plotter.XY{X: w, Y: r.Phase[k]}
		}

		ml, err := plotter.NewLine(magXY)
		if err != nil {
			return fmt.Errorf("bode %s: %w", r.Name, err)
		}
		pl, err := plotter.NewLine(phaseXY)
		if err != nil {
			return fmt.Errorf("bode %s: %w", r.Name, err)
		}
		ml.Color = plotutil.Color(i)
		pl.Color = plotutil.Color(i)
		ml.Dashes = plotutil.Dashes(i)
		pl.Dashes = plotutil.Dashes(i)

		mag.Add(ml)
		phase.Add(pl)
		mag.Legend.Add(r.Name, ml)
	}

	plots := [][]*plot.Plot{{mag}, {phase}}
	img := vgimg.New(8*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Millimeter * 4}
	canvases := plot.Align(plots, tiles, dc)
	mag.Draw(canvases[0][0])
	phase.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
