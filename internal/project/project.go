// Package project reads and writes YAML project scripts: a declarative list
// of elements to import into a session.
package project

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/vidcanvas/internal/effects"
	"github.com/ivlev/vidcanvas/internal/scene"
	"github.com/ivlev/vidcanvas/internal/system"
)

const Version = "1.0"

// Project is a complete script.
type Project struct {
	Version  string    `yaml:"version"`
	Elements []Element `yaml:"elements"`
}

// Element is one script entry. Image elements take exactly one of Source,
// PDF or QR; video and audio take Source; text takes Text.
type Element struct {
	Kind       string  `yaml:"kind"`
	Name       string  `yaml:"name,omitempty"`
	Text       string  `yaml:"text,omitempty"`
	FontSize   float64 `yaml:"font_size,omitempty"`
	FontWeight int     `yaml:"font_weight,omitempty"`
	Source     string  `yaml:"source,omitempty"`
	PDF        string  `yaml:"pdf,omitempty"`
	Page       int     `yaml:"page,omitempty"`
	QR         string  `yaml:"qr,omitempty"`
	Effect     string  `yaml:"effect,omitempty"`

	Placement *Placement `yaml:"placement,omitempty"`
	TimeFrame *TimeFrame `yaml:"time_frame,omitempty"`
}

// Placement overrides the default placement. Width, height and scales are
// only applied when positive.
type Placement struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Width    float64 `yaml:"width,omitempty"`
	Height   float64 `yaml:"height,omitempty"`
	Rotation float64 `yaml:"rotation,omitempty"`
	ScaleX   float64 `yaml:"scale_x,omitempty"`
	ScaleY   float64 `yaml:"scale_y,omitempty"`
}

// TimeFrame bounds in ms. Missing bounds keep the insertion default.
type TimeFrame struct {
	Start *int64 `yaml:"start,omitempty"`
	End   *int64 `yaml:"end,omitempty"`
}

// Write writes a project to a YAML file
func Write(p *Project, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Read reads and validates a project from a YAML file
func Read(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &p, nil
}

// Validate checks every element without touching the filesystem.
func (p *Project) Validate() error {
	if p.Version != "" && p.Version != Version {
		return fmt.Errorf("unsupported project version %q", p.Version)
	}
	var errs []error
	for i, el := range p.Elements {
		if err := el.validate(); err != nil {
			errs = append(errs, fmt.Errorf("element %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (el Element) validate() error {
	kind, err := scene.ParseKind(el.Kind)
	if err != nil {
		return err
	}
	if _, err := effects.New(el.Effect); err != nil {
		return err
	}

	switch kind {
	case scene.KindText:
		if el.Text == "" {
			return fmt.Errorf("text element needs text")
		}
	case scene.KindImage:
		n := 0
		for _, s := range []string{el.Source, el.PDF, el.QR} {
			if s != "" {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("image element needs exactly one of source, pdf or qr")
		}
		if el.Page < 0 {
			return fmt.Errorf("negative pdf page %d", el.Page)
		}
	case scene.KindVideo, scene.KindAudio:
		if el.Source == "" {
			return fmt.Errorf("%s element needs a source", kind)
		}
	}

	if tf := el.TimeFrame; tf != nil && tf.Start != nil && tf.End != nil && *tf.Start > *tf.End {
		return fmt.Errorf("time frame start %d after end %d", *tf.Start, *tf.End)
	}
	return nil
}

// Template is the starter script written by `vidcanvas init`.
func Template() *Project {
	end := int64(5000)
	return &Project{
		Version: Version,
		Elements: []Element{
			{
				Kind:       string(scene.KindText),
				Name:       "Title",
				Text:       "Hello, vidcanvas",
				FontSize:   32,
				FontWeight: 700,
				Placement:  &Placement{X: 40, Y: 80, Width: 280, Height: 60},
				TimeFrame:  &TimeFrame{End: &end},
			},
			{
				Kind:      string(scene.KindImage),
				Name:      "Link",
				QR:        "https://example.com",
				Placement: &Placement{X: 80, Y: 300, Width: 200, Height: 200},
			},
		},
	}
}

// FindLatestProject returns the most recently modified project script in
// dir.
func FindLatestProject(dir string) (string, error) {
	return system.FindLatest(dir, system.ProjectExtensions...)
}
