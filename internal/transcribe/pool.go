package transcribe

import (
	"context"

	"vidnote/internal/config"
	"vidnote/internal/notes"
	"vidnote/internal/stage"
)

// Pool bounds the number of simultaneous transcriptions. Whisper saturates
// CPU and memory, so the limit defaults to one even when the task worker
// pool is wider.
type Pool struct {
	inner stage.Transcriber
	slots chan struct{}
}

// NewPool wraps a transcriber with a concurrency bound.
func NewPool(inner stage.Transcriber, maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Pool{
		inner: inner,
		slots: make(chan struct{}, maxConcurrent),
	}
}

// NewFromConfig builds the configured transcriber strategy wrapped in a pool.
func NewFromConfig(cfg *config.Config) *Pool {
	var inner stage.Transcriber
	switch cfg.Transcriber.Kind {
	case "openai":
		inner = NewOpenAI(cfg)
	default:
		inner = NewWhisperCLI(cfg)
	}
	return NewPool(inner, cfg.Transcriber.MaxConcurrent)
}

// Transcribe waits for a slot, respecting context cancellation while queued.
func (p *Pool) Transcribe(ctx context.Context, req stage.Request, meta *notes.AudioMeta) (*notes.Transcript, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.slots }()
	return p.inner.Transcribe(ctx, req, meta)
}

// HealthCheck delegates to the wrapped strategy.
func (p *Pool) HealthCheck(ctx context.Context) stage.Health {
	return p.inner.HealthCheck(ctx)
}
