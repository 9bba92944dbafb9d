package surface

import (
	"fmt"
	"image"
	"image/draw"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const boldWeight = 600

type faceKey struct {
	bold bool
	size float64
}

// fontCache parses the Go fonts once and keeps faces per size.
type fontCache struct {
	mu      sync.Mutex
	regular *opentype.Font
	bold    *opentype.Font
	faces   map[faceKey]font.Face
}

var fonts = &fontCache{faces: make(map[faceKey]font.Face)}

func (c *fontCache) face(size float64, weight int) (font.Face, error) {
	if size <= 0 {
		size = 16
	}
	key := faceKey{bold: weight >= boldWeight, size: size}

	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.faces[key]; ok {
		return f, nil
	}
	if c.regular == nil {
		reg, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("parse regular font: %w", err)
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			return nil, fmt.Errorf("parse bold font: %w", err)
		}
		c.regular, c.bold = reg, bold
	}
	src := c.regular
	if key.bold {
		src = c.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	c.faces[key] = f
	return f, nil
}

// wrapText breaks text into lines no wider than width, greedily by words.
// Explicit newlines always break; a single word wider than the box keeps its
// own line.
func wrapText(face font.Face, text string, width float64) []string {
	limit := fixed.Int26_6(width * 64)
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if font.MeasureString(face, candidate) > limit {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}

// textLayout returns the wrapped lines and the box height. Text boxes grow
// vertically with their content.
func textLayout(style TextStyle, width float64) (font.Face, []string, int, error) {
	face, err := fonts.face(style.FontSize, style.FontWeight)
	if err != nil {
		return nil, nil, 0, err
	}
	lines := wrapText(face, style.Text, width)
	lh := face.Metrics().Height.Ceil()
	return face, lines, lh * len(lines), nil
}

// renderText rasterizes a text box at its intrinsic size.
func renderText(style TextStyle, width float64) (*image.RGBA, error) {
	face, lines, h, err := textLayout(style, width)
	if err != nil {
		return nil, err
	}
	w := int(width + 0.5)
	if w <= 0 || h <= 0 {
		return nil, nil
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)

	m := face.Metrics()
	lh := m.Height.Ceil()
	d := font.Drawer{Dst: img, Src: image.NewUniform(style.Fill), Face: face}
	for i, line := range lines {
		d.Dot = fixed.Point26_6{X: 0, Y: m.Ascent + fixed.I(i*lh)}
		d.DrawString(line)
	}
	return img, nil
}
