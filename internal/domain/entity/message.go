package entity

import "github.com/google/uuid"

// DefaultTimePerMove is used when the timeline does not specify one.
const DefaultTimePerMove = 0.2

// MoveTimeline is the timeline document supplied by the UI collaborator. It
// is persisted verbatim to remotion/export.json before rendering, so the
// field names match that file exactly.
type MoveTimeline struct {
	Timestamps  []float64 `json:"timestamps"`
	TimePerMove float64   `json:"timePerMove"`
	XOffset     float64   `json:"x_offset"`
	YOffset     float64   `json:"y_offset"`
}

// ExportRequestMessage is the inbound message from the export queue.
type ExportRequestMessage struct {
	JobID         uuid.UUID    `json:"job_id"`
	UserID        string       `json:"user_id"`
	BackgroundKey string       `json:"background_key"`
	UserEmail     string       `json:"user_email"`
	Timeline      MoveTimeline `json:"timeline"`
}

// ExportResult is the payload handed back to the UI on success.
type ExportResult struct {
	Status             string     `json:"status"`
	OverlaySegments    []Segment  `json:"overlay_segments"`
	BackgroundSegments []Segment  `json:"background_segments"`
	XYOffset           [2]float64 `json:"xy_offset"`
	FFmpegCommand      string     `json:"ffmpeg_command"`
	FFmpegOutput       string     `json:"ffmpeg_output"`
	Message            string     `json:"message"`
}

// ExportStatusMessage is the outbound message published to the status queue.
type ExportStatusMessage struct {
	JobID         uuid.UUID     `json:"job_id"`
	UserID        string        `json:"user_id"`
	Status        JobStatus     `json:"status"`
	BackgroundKey string        `json:"background_key"`
	OutputKey     string        `json:"output_key,omitempty"`
	MoveCount     int           `json:"move_count"`
	FailedStage   string        `json:"failed_stage,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Result        *ExportResult `json:"result,omitempty"`
}
