package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady fails fast when the backend is unreachable, then pulls every
// listed model that is not installed yet. Progress goes to w. Empty and
// repeated names are skipped.
func EnsureReady(ctx context.Context, e Engine, models []string, w io.Writer) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("embedding backend is not running; start it with: ollama serve")
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if !e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: pulling...\n", model)
			if err := e.PullModel(ctx, model, ProgressPrinter(w)); err != nil {
				return fmt.Errorf("pulling model %s: %w", model, err)
			}
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	return nil
}

// ProgressPrinter returns a pull callback that writes one line per update,
// collapsing repeated status lines without a size.
func ProgressPrinter(w io.Writer) func(PullProgress) {
	var last string
	return func(p PullProgress) {
		if pct := p.Percent(); pct >= 0 {
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			return
		}
		if p.Status == last {
			return
		}
		last = p.Status
		fmt.Fprintf(w, "  %s\n", p.Status)
	}
}
