package effects

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// Effect is a per-frame image filter attached to a visual element.
type Effect interface {
	Name() string
	Apply(img image.Image) image.Image
}

// Tags understood by New.
const (
	None          = "none"
	BlackAndWhite = "blackAndWhite"
	Invert        = "invert"
	Blur          = "blur"
	Sepia         = "sepia"
)

type funcEffect struct {
	name string
	fn   func(image.Image) image.Image
}

func (e funcEffect) Name() string                      { return e.name }
func (e funcEffect) Apply(img image.Image) image.Image { return e.fn(img) }

var registry = map[string]func(image.Image) image.Image{
	None:          func(img image.Image) image.Image { return img },
	BlackAndWhite: func(img image.Image) image.Image { return imaging.Grayscale(img) },
	Invert:        func(img image.Image) image.Image { return imaging.Invert(img) },
	Blur:          func(img image.Image) image.Image { return imaging.Blur(img, 3) },
	Sepia:         sepia,
}

// New returns the effect registered under tag. The empty tag means none.
func New(tag string) (Effect, error) {
	if tag == "" {
		tag = None
	}
	fn, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("unknown effect: %s", tag)
	}
	return funcEffect{name: tag, fn: fn}, nil
}

// IsNone reports whether tag leaves frames untouched.
func IsNone(tag string) bool {
	return tag == "" || tag == None
}

// Names lists the registered tags in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sepia(img image.Image) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		return color.NRGBA{
			R: clamp8(0.393*r + 0.769*g + 0.189*b),
			G: clamp8(0.349*r + 0.686*g + 0.168*b),
			B: clamp8(0.272*r + 0.534*g + 0.131*b),
			A: c.A,
		}
	})
}

func clamp8(v float64) uint8 {
	return uint8(math.Min(255, math.Max(0, math.Round(v))))
}
