package camera

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/janelia-flyem/tsdf/grid"
)

// DepthImage holds per-pixel depth in metres, row-major.  Zero marks missing depth.
type DepthImage struct {
	Width  int
	Height int
	Data   []float32
}

// NewDepthImage returns a zeroed depth image.
func NewDepthImage(width, height int) *DepthImage {
	return &DepthImage{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// Indexer returns the dense 2d indexer of the image.
func (d *DepthImage) Indexer() grid.Dense {
	return grid.NewDense(int64(d.Height), int64(d.Width))
}

// At returns the depth at pixel (x, y).
func (d *DepthImage) At(x, y int) float32 {
	return d.Data[x+y*d.Width]
}

// Set sets the depth at pixel (x, y).
func (d *DepthImage) Set(x, y int, depth float32) {
	d.Data[x+y*d.Width] = depth
}

// Validate checks the image dimensions against its data.
func (d *DepthImage) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("depth image size must be positive, got %d x %d", d.Width, d.Height)
	}
	if len(d.Data) != d.Width*d.Height {
		return fmt.Errorf("depth image %d x %d has %d values", d.Width, d.Height, len(d.Data))
	}
	return nil
}

// Fill sets every pixel to the given depth.
func (d *DepthImage) Fill(depth float32) {
	for i := range d.Data {
		d.Data[i] = depth
	}
}

// DecodeDepthPNG reads a 16-bit single channel PNG.  Raw values are divided by
// depthScale to get metres and depths beyond depthMax are zeroed.  A depthMax of
// zero disables the cutoff.
func DecodeDepthPNG(r io.Reader, depthScale, depthMax float32) (*DepthImage, error) {
	if depthScale <= 0 {
		return nil, fmt.Errorf("depth scale must be positive, got %g", depthScale)
	}
	img, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	depth := NewDepthImage(bounds.Dx(), bounds.Dy())
	gray, isGray16 := img.(*image.Gray16)
	for y := 0; y < depth.Height; y++ {
		for x := 0; x < depth.Width; x++ {
			var raw uint16
			if isGray16 {
				raw = gray.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y
			} else {
				raw = color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16).Y
			}
			d := float32(raw) / depthScale
			if depthMax > 0 && d > depthMax {
				d = 0
			}
			depth.Set(x, y, d)
		}
	}
	return depth, nil
}

// ReadDepthPNG reads a depth image from a PNG file.
func ReadDepthPNG(path string, depthScale, depthMax float32) (*DepthImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	depth, err := DecodeDepthPNG(f, depthScale, depthMax)
	if err != nil {
		return nil, fmt.Errorf("bad depth image %q: %v", path, err)
	}
	return depth, nil
}

// EncodeDepthPNG writes depth as a 16-bit PNG using the given scale.
func EncodeDepthPNG(w io.Writer, depth *DepthImage, depthScale float32) error {
	img := image.NewGray16(image.Rect(0, 0, depth.Width, depth.Height))
	for y := 0; y < depth.Height; y++ {
		for x := 0; x < depth.Width; x++ {
			raw := depth.At(x, y)*depthScale + 0.5
			if raw < 0 {
				raw = 0
			} else if raw > 65535 {
				raw = 65535
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(raw)})
		}
	}
	return png.Encode(w, img)
}
