// Package scene holds the time-indexed element collection of an editing
// session. It has no rendering logic and no locking of its own: the owning
// session serializes access.
package scene

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultReferenceHeight is the height image and video elements get on
// insertion when the caller does not configure one.
const DefaultReferenceHeight = 300

// Model maps element ids to elements, in insertion (z) order.
type Model struct {
	maxTime         int64
	referenceHeight float64
	elements        []Element
	index           map[string]int
	activeID        string
	counter         int
	newID           func() string
}

// NewModel creates an empty scene with the given timeline length in ms.
func NewModel(maxTime int64, referenceHeight float64) *Model {
	if referenceHeight <= 0 {
		referenceHeight = DefaultReferenceHeight
	}
	return &Model{
		maxTime:         maxTime,
		referenceHeight: referenceHeight,
		index:           make(map[string]int),
		newID:           uuid.NewString,
	}
}

// MaxTime returns the timeline length in ms.
func (m *Model) MaxTime() int64 {
	return m.maxTime
}

// Len returns the number of elements.
func (m *Model) Len() int {
	return len(m.elements)
}

// Add allocates a new element from c and appends it on top of the scene.
func (m *Model) Add(c Content) Element {
	m.counter++
	id := m.newID()
	for {
		if _, taken := m.index[id]; !taken {
			break
		}
		id = m.newID()
	}

	name := c.Name
	if name == "" {
		name = fmt.Sprintf("%s %d", titleKind(c.Kind), m.counter)
	}

	end := m.maxTime
	if c.Duration > 0 && c.Duration < m.maxTime {
		end = c.Duration
	}

	el := Element{
		ID:        id,
		Name:      name,
		Kind:      c.Kind,
		Placement: m.defaultPlacement(c),
		TimeFrame: TimeFrame{Start: 0, End: end},
		Properties: Properties{
			Text:       c.Text,
			FontSize:   c.FontSize,
			FontWeight: c.FontWeight,
			SourceID:   c.SourceID,
			Effect:     c.Effect,
		},
	}

	m.index[id] = len(m.elements)
	m.elements = append(m.elements, el)
	return el
}

func (m *Model) defaultPlacement(c Content) Placement {
	p := Placement{ScaleX: 1, ScaleY: 1}
	switch c.Kind {
	case KindText:
		p.Width, p.Height = 100, 100
	case KindImage, KindVideo:
		p.Height = m.referenceHeight
		if c.NaturalWidth > 0 && c.NaturalHeight > 0 {
			p.Width = m.referenceHeight * c.NaturalWidth / c.NaturalHeight
		} else {
			p.Width = m.referenceHeight
		}
	}
	return p
}

// Get returns the element with the given id.
func (m *Model) Get(id string) (Element, bool) {
	i, ok := m.index[id]
	if !ok {
		return Element{}, false
	}
	return m.elements[i], true
}

// Elements returns a copy of the collection in z-order.
func (m *Model) Elements() []Element {
	out := make([]Element, len(m.elements))
	copy(out, m.elements)
	return out
}

// UpdateTimeFrame clamps and merges patch into the element's time frame.
// Unknown ids are ignored.
func (m *Model) UpdateTimeFrame(id string, patch TimeFramePatch) (Element, bool) {
	i, ok := m.index[id]
	if !ok {
		return Element{}, false
	}

	tf := m.elements[i].TimeFrame
	if patch.Start != nil {
		tf.Start = *patch.Start
	}
	if patch.End != nil {
		tf.End = *patch.End
	}
	tf = m.clamp(tf, patch.Start != nil && patch.End == nil)

	m.elements[i].TimeFrame = tf
	return m.elements[i], true
}

// clamp normalizes tf into 0 <= Start <= End <= maxTime. When startMoved is
// set the start yields to the end, otherwise the end yields to the start.
func (m *Model) clamp(tf TimeFrame, startMoved bool) TimeFrame {
	if tf.Start < 0 {
		tf.Start = 0
	}
	if tf.End > m.maxTime {
		tf.End = m.maxTime
	}
	if tf.Start > m.maxTime {
		tf.Start = m.maxTime
	}
	if tf.End < 0 {
		tf.End = 0
	}
	if tf.Start > tf.End {
		if startMoved {
			tf.Start = tf.End
		} else {
			tf.End = tf.Start
		}
	}
	return tf
}

// Replace swaps the stored element for el, keeping the id. The replacement's
// time frame is clamped like any other update.
func (m *Model) Replace(id string, el Element) bool {
	i, ok := m.index[id]
	if !ok {
		return false
	}
	el.ID = id
	el.TimeFrame = m.clamp(el.TimeFrame, false)
	m.elements[i] = el
	return true
}

// Remove deletes an element, clearing the selection if it was active.
func (m *Model) Remove(id string) bool {
	i, ok := m.index[id]
	if !ok {
		return false
	}
	m.elements = append(m.elements[:i], m.elements[i+1:]...)
	delete(m.index, id)
	for j := i; j < len(m.elements); j++ {
		m.index[m.elements[j].ID] = j
	}
	if m.activeID == id {
		m.activeID = ""
	}
	return true
}

// SetActive makes id the only active element. "" clears the selection;
// unknown ids leave it untouched.
func (m *Model) SetActive(id string) bool {
	if id == "" {
		m.activeID = ""
		return true
	}
	if _, ok := m.index[id]; !ok {
		return false
	}
	m.activeID = id
	return true
}

// ActiveID returns the id of the active element, or "".
func (m *Model) ActiveID() string {
	return m.activeID
}

// Active returns the active element.
func (m *Model) Active() (Element, bool) {
	if m.activeID == "" {
		return Element{}, false
	}
	return m.Get(m.activeID)
}

func titleKind(k Kind) string {
	switch k {
	case KindText:
		return "Text"
	case KindImage:
		return "Image"
	case KindVideo:
		return "Video"
	case KindAudio:
		return "Audio"
	}
	return string(k)
}
