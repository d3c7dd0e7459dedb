package chart

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// SaveGrid renders plots as a rows × cols dashboard PNG. plots is
// row-major; nil entries leave an empty tile.
func SaveGrid(plots [][]*plot.Plot, size Size, path string) error {
	rows := len(plots)
	if rows == 0 {
		return ErrNoData
	}
	cols := len(plots[0])
	for i, row := range plots {
		if len(row) != cols {
			return fmt.Errorf("chart: dashboard row %d has %d tiles, want %d", i, len(row), cols)
		}
	}

	img := vgimg.New(size.Width, size.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 8,
		PadY:      vg.Millimeter * 8,
		PadTop:    vg.Millimeter * 4,
		PadBottom: vg.Millimeter * 4,
		PadLeft:   vg.Millimeter * 4,
		PadRight:  vg.Millimeter * 4,
	}
	canvases := plot.Align(plots, tiles, dc)
	for j, row := range plots {
		for i, p := range row {
			if p != nil {
				p.Draw(canvases[j][i])
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chart: create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("chart: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("chart: close %s: %w", path, err)
	}
	return nil
}
