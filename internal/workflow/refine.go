package workflow

import (
	"context"
	"fmt"

	"github.com/thywilljoshua/fincontext/internal/ai"
	"github.com/thywilljoshua/fincontext/internal/layout"
	"github.com/thywilljoshua/fincontext/internal/pdfpage"
)

// Refinement is the outcome of refining one section's box.
type Refinement struct {
	Box        layout.BoundingBox
	Accepted   bool // false when the budget ran out first
	Iterations int  // inspector calls made
}

// refine searches for the box that holds sec. It starts from the full page
// and asks the inspector at most budget times. Each rejected candidate is
// remembered and shown to the inspector on later turns. The final box is
// always the inspector's last suggestion, whether or not it accepted.
func (w *Workflow) refine(ctx context.Context, pageImage []byte, sec layout.Section, budget int) (Refinement, error) {
	candidate := layout.FullPage
	var rejected []layout.BoundingBox

	for i := 1; i <= budget; i++ {
		if err := ctx.Err(); err != nil {
			return Refinement{}, err
		}
		crop, err := pdfpage.CropImage(pageImage, candidate, w.cfg.MaxImageSide)
		if err != nil {
			return Refinement{}, fmt.Errorf("crop candidate %s: %w", candidate, err)
		}
		j, err := w.inspector.Inspect(ctx, ai.InspectRequest{
			Crop:     crop,
			Section:  sec,
			Current:  candidate,
			Previous: append([]layout.BoundingBox(nil), rejected...),
		})
		if err != nil {
			return Refinement{}, err
		}
		if err := j.Suggested.Validate(); err != nil {
			return Refinement{}, fmt.Errorf("%w: suggested box: %v", ai.ErrEvaluation, err)
		}
		if j.IsAccurate || i == budget {
			return Refinement{Box: j.Suggested, Accepted: j.IsAccurate, Iterations: i}, nil
		}
		rejected = append(rejected, candidate)
		candidate = j.Suggested
	}
	return Refinement{Box: candidate}, nil
}
