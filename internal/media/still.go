package media

import (
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/skip2/go-qrcode"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/vidcanvas/internal/scene"
)

// Still is an image source: a decoded file, a rendered PDF page or a
// generated QR code.
type Still struct {
	transport
	id   string
	path string
	img  image.Image
}

// NewStill wraps an already decoded picture.
func NewStill(id, path string, img image.Image) *Still {
	return &Still{id: id, path: path, img: img}
}

// OpenImage decodes a jpeg/png/webp file, honoring EXIF orientation, and
// shrinks it to fit maxDim when maxDim > 0.
func OpenImage(id, path string, maxDim int) (*Still, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return NewStill(id, path, fit(img, maxDim)), nil
}

// OpenPDFPage renders one page (0-based) of a PDF at dpi.
func OpenPDFPage(id, path string, page int, dpi float64, maxDim int) (*Still, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("pdf %s has %d pages, page %d requested", path, doc.NumPage(), page+1)
	}
	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("render pdf page %d: %w", page+1, err)
	}
	return NewStill(id, fmt.Sprintf("%s#%d", path, page+1), fit(img, maxDim)), nil
}

// NewQRCode encodes content as a square QR code of size pixels.
func NewQRCode(id, content string, size int) (*Still, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return NewStill(id, "qr:"+content, q.Image(size)), nil
}

func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

func (s *Still) ID() string              { return s.id }
func (s *Still) Kind() scene.Kind        { return scene.KindImage }
func (s *Still) Path() string            { return s.path }
func (s *Still) Duration() time.Duration { return 0 }
func (s *Still) Frame() image.Image      { return s.img }
func (s *Still) Close() error            { return nil }

func (s *Still) NaturalSize() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}
