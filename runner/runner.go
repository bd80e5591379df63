// Package runner implements the Agent Runner: a text-in/text-out
// invocation of a named agent, either against a real backend or a mock
// corpus. Both implementations honor ctx cancellation. RealRunner reifies
// backend faults as a synthetic FAILED status envelope instead of an error;
// MockRunner returns ctx.Err() when cancelled before its delay elapses.
package runner

import "context"

// Runner is the contract implemented by Real and Mock: run an agent with
// a prompt and return its raw text output. Runner may suspend for an
// arbitrary duration and must respect ctx cancellation.
type Runner interface {
	Run(ctx context.Context, agent, prompt string) (string, error)
}
