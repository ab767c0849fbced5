package planner

import (
	"errors"
	"math"

	"github.com/Copium-archive/boardcast/internal/domain/entity"
)

// ErrEmptyTimeline is returned when the timeline carries no move timestamps.
var ErrEmptyTimeline = errors.New("timeline has no move timestamps")

// DefaultAnimationEnd is the terminal boundary appended to the timestamp
// sequence: the total duration of the rendered animation in seconds.
const DefaultAnimationEnd = 7.0

// Plan pairs each move with an overlay segment (where in the animation clip
// the move is played) and a background segment (when it appears on the board
// footage). The move at timestamps[i] plays its animation slice of length
// timePerMove, then holds until the next move; animationEnd caps the last
// background segment.
//
// Pure function: no I/O, identical input yields identical output.
func Plan(timestamps []float64, timePerMove float64, offset entity.Offset, animationEnd float64) (entity.SegmentPlan, error) {
	if len(timestamps) == 0 {
		return entity.SegmentPlan{}, ErrEmptyTimeline
	}

	n := len(timestamps)

	overlay := make([]entity.Segment, n)
	for i := 0; i < n; i++ {
		overlay[i] = entity.Segment{
			Start: round3(float64(i) * timePerMove),
			End:   round3(float64(i+1) * timePerMove),
		}
	}

	// Extend the timeline with the terminal boundary so every move has a
	// successor to hold until.
	ext := make([]float64, 0, n+1)
	ext = append(ext, timestamps...)
	ext = append(ext, animationEnd)

	background := make([]entity.Segment, n)
	for i := 1; i <= n; i++ {
		background[i-1] = entity.Segment{
			Start: round3(ext[i-1] - timePerMove),
			End:   ext[i],
		}
	}

	// The first move needs no lead-in: the board starts at its initial
	// position, so undo the general-case shift.
	background[0].Start = round3(background[0].Start + timePerMove)

	return entity.SegmentPlan{
		Overlay:    overlay,
		Background: background,
		Offset:     offset,
	}, nil
}

// round3 rounds to millisecond precision.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
