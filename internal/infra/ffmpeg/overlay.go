package ffmpeg

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Copium-archive/boardcast/internal/domain/entity"
)

var (
	// ErrNoSegments is returned when the plan carries no segment pairs.
	ErrNoSegments = errors.New("composition plan has no segments")

	// ErrSegmentCountMismatch is returned when overlay and background
	// segment counts differ.
	ErrSegmentCountMismatch = errors.New("overlay and background segment counts differ")
)

// Segments whose background runs longer than the overlay by less than this
// are not worth a freeze-frame pad.
const freezeEpsilon = 0.001

// Default clip filenames under the exporting work directory, used when the
// plan leaves a path empty.
const (
	DefaultBackgroundFile = "background.mp4"
	DefaultOverlayFile    = "chess-animation.mp4"
	DefaultOutputFile     = "output.mp4"
)

// ResolveClipPaths fills empty plan paths with the default filenames under
// rootDir/workSubdir and resolves every path to absolute form.
func ResolveClipPaths(plan *entity.CompositionPlan, rootDir, workSubdir string) error {
	defaults := []struct {
		path *string
		name string
	}{
		{&plan.BackgroundPath, DefaultBackgroundFile},
		{&plan.OverlayPath, DefaultOverlayFile},
		{&plan.OutputPath, DefaultOutputFile},
	}

	for _, d := range defaults {
		p := *d.path
		if p == "" {
			p = filepath.Join(rootDir, workSubdir, d.name)
		} else if !filepath.IsAbs(p) {
			p = filepath.Join(rootDir, p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve clip path %q: %w", p, err)
		}
		*d.path = abs
	}
	return nil
}

// BuildOverlayArgs synthesizes the complete ffmpeg argument list that
// composites every overlay segment onto the background clip. The background
// is input 0; each overlay segment becomes one trimmed input. The filter
// graph pads each overlay with a freeze frame when its background window
// runs longer, shifts its timestamps to the window start, and overlays it at
// the plan offset, enabled only inside the window. Audio is stream-copied
// from the background.
//
// The returned slice is ready to hand to the process runner; nothing is
// executed here.
func BuildOverlayArgs(plan entity.CompositionPlan) ([]string, error) {
	if len(plan.Overlay) != len(plan.Background) {
		return nil, fmt.Errorf("%w: %d overlay vs %d background",
			ErrSegmentCountMismatch, len(plan.Overlay), len(plan.Background))
	}
	if len(plan.Overlay) == 0 {
		return nil, ErrNoSegments
	}

	args := make([]string, 0, 16+6*len(plan.Overlay))

	args = append(args, "-i", plan.BackgroundPath)
	for _, seg := range plan.Overlay {
		args = append(args,
			"-ss", formatSeconds(seg.Start),
			"-t", formatSeconds(seg.Duration()),
			"-i", plan.OverlayPath,
		)
	}

	graph, lastLabel := buildFilterGraph(plan)
	args = append(args, "-filter_complex", graph)

	args = append(args,
		"-map", lastLabel,
		"-map", "0:a?",
		"-c:a", "copy",
		"-y", plan.OutputPath,
	)

	return args, nil
}

// buildFilterGraph returns the semicolon-joined filter chain and the label
// of the final composited video stream.
func buildFilterGraph(plan entity.CompositionPlan) (string, string) {
	parts := make([]string, 0, 2*len(plan.Overlay))
	last := "[0:v]"

	for i := range plan.Overlay {
		ov := plan.Overlay[i]
		bg := plan.Background[i]

		in := fmt.Sprintf("[%d:v]", i+1)
		processed := fmt.Sprintf("[processed_overlay_%d]", i+1)
		out := fmt.Sprintf("[v_out_%d]", i+1)

		var stages []string
		if freeze := bg.Duration() - ov.Duration(); freeze > freezeEpsilon {
			stages = append(stages, "tpad=stop_mode=clone:stop_duration="+formatSeconds(freeze))
		}
		stages = append(stages, "setpts=PTS+"+formatSeconds(bg.Start)+"/TB")
		parts = append(parts, in+strings.Join(stages, ",")+processed)

		parts = append(parts, fmt.Sprintf("%s%soverlay=%s:%s:enable='between(t,%s,%s)'%s",
			last, processed,
			formatSeconds(plan.Offset.X), formatSeconds(plan.Offset.Y),
			formatSeconds(bg.Start), formatSeconds(bg.End),
			out,
		))

		last = out
	}

	return strings.Join(parts, ";"), last
}

// formatSeconds renders a number without trailing zeros (0.5, not 0.500).
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
