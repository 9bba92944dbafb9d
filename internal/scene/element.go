package scene

import "fmt"

// Kind is the element variant.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Valid reports whether k is one of the four supported variants.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio:
		return true
	}
	return false
}

// HasMedia reports whether elements of this kind reference a media source.
func (k Kind) HasMedia() bool {
	return k == KindImage || k == KindVideo || k == KindAudio
}

// Timed reports whether the media source has a play position to keep in sync.
func (k Kind) Timed() bool {
	return k == KindVideo || k == KindAudio
}

// ParseKind converts a name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown element kind %q", s)
	}
	return k, nil
}

// Placement is the 2-D affine transform of an element on the canvas.
type Placement struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	Rotation float64 `yaml:"rotation"` // degrees
	ScaleX   float64 `yaml:"scale_x"`
	ScaleY   float64 `yaml:"scale_y"`
}

// TimeFrame is the closed interval [Start, End] in milliseconds during which
// an element is live.
type TimeFrame struct {
	Start int64 `yaml:"start"`
	End   int64 `yaml:"end"`
}

// Contains reports whether t (ms) lies within the frame, bounds included.
func (tf TimeFrame) Contains(t float64) bool {
	return float64(tf.Start) <= t && t <= float64(tf.End)
}

// Duration is End - Start.
func (tf TimeFrame) Duration() int64 {
	return tf.End - tf.Start
}

// TimeFramePatch is a partial TimeFrame update; nil fields are kept.
type TimeFramePatch struct {
	Start *int64
	End   *int64
}

// Properties is the variant-specific payload of an element.
type Properties struct {
	// text
	Text       string
	FontSize   float64
	FontWeight int

	// image, video, audio
	SourceID string
	Effect   string
}

// Element is a timed, placed unit of content.
type Element struct {
	ID         string
	Name       string
	Kind       Kind
	Placement  Placement
	TimeFrame  TimeFrame
	Properties Properties
}

// Content is what the media import collaborator hands to Model.Add.
type Content struct {
	Kind Kind
	Name string

	Text       string
	FontSize   float64
	FontWeight int

	SourceID      string
	Effect        string
	NaturalWidth  float64
	NaturalHeight float64
	// Duration of the source in milliseconds; 0 when unknown or static.
	Duration int64
}
