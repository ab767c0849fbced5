package port

import "context"

// AnimationRenderer produces the overlay clip from the persisted timeline,
// typically by driving an external rendering tool.
type AnimationRenderer interface {
	RenderAnimation(ctx context.Context) CommandOutcome
}
