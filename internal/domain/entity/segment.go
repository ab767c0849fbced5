package entity

import (
	"encoding/json"
	"fmt"
)

// Segment is a half-open time interval in seconds, millisecond precision.
// It serializes as a two-element [start, end] array, the shape the UI
// collaborator expects in the result payload.
type Segment struct {
	Start float64
	End   float64
}

// Duration returns the length of the segment in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{s.Start, s.End})
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("segment must be a [start, end] pair: %w", err)
	}
	s.Start, s.End = pair[0], pair[1]
	return nil
}

// Offset is the pixel position at which the overlay clip is placed on the
// background clip.
type Offset struct {
	X float64
	Y float64
}

// SegmentPlan pairs each overlay-clip interval with the background interval
// during which it is shown. Both slices always have equal length.
type SegmentPlan struct {
	Overlay    []Segment
	Background []Segment
	Offset     Offset
}

// CompositionPlan is a SegmentPlan bound to concrete clip paths. Paths are
// absolute by the time the plan reaches the compositing engine.
type CompositionPlan struct {
	Overlay        []Segment
	Background     []Segment
	Offset         Offset
	BackgroundPath string
	OverlayPath    string
	OutputPath     string
}
