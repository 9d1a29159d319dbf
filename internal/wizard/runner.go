package wizard

import (
	"context"
	"errors"

	"zolo/internal/auth"
	"zolo/internal/block"
	"zolo/internal/logging"
)

// Chunk is one progressive-rendering unit yielded in Bifrost mode.
type Chunk struct {
	Keys      []string
	IsGate    bool
	GateValue any
}

// ErrCancelled is reported by Err after Cancel or client disconnect.
var ErrCancelled = errors.New("chunked run cancelled")

// Runner drives the chunked strategy as a goroutine with an inbox: the
// bridge receives chunks from Next and feeds menu selections and form
// submissions back through Resume. Suspend points are exactly two: "!"
// gates and menus whose dispatch returned nil.
type Runner struct {
	chunks chan Chunk
	resume chan any
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// StartChunked begins a chunked run over the block. The caller must drain
// Next until it reports completion, or call Cancel.
func (e *Engine) StartChunked(ctx context.Context, b *block.Block, opts ExecOptions) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	r := &Runner{
		chunks: make(chan Chunk),
		resume: make(chan any),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.run(ctx, e, b, opts)
	return r
}

// Next blocks for the next chunk. ok is false once the run has finished.
func (r *Runner) Next() (chunk Chunk, ok bool) {
	chunk, ok = <-r.chunks
	return chunk, ok
}

// Resume delivers a menu selection or gate submission to the suspended
// run. Returns false when the run already finished.
func (r *Runner) Resume(v any) bool {
	select {
	case r.resume <- v:
		return true
	case <-r.done:
		return false
	}
}

// Cancel aborts the run; used on client disconnect.
func (r *Runner) Cancel() {
	r.cancel()
}

// Err reports how the run ended; nil means it ran to completion.
func (r *Runner) Err() error {
	<-r.done
	return r.err
}

func (r *Runner) run(ctx context.Context, e *Engine, b *block.Block, opts ExecOptions) {
	defer close(r.done)
	defer close(r.chunks)
	if opts.Exec == nil {
		opts.Exec = NewExecContext()
	}
	r.err = r.generate(ctx, e, b, opts)
	if errors.Is(r.err, context.Canceled) {
		r.err = ErrCancelled
	}
}

func (r *Runner) generate(ctx context.Context, e *Engine, b *block.Block, opts ExecOptions) error {
	ec := opts.Exec
	prepared, sig, err := e.prepare(ctx, b, opts.BlockName, ec)
	if err != nil {
		return err
	}
	if sig == SignalBack {
		// Block-level denial: a single sentinel chunk, nothing else
		// leaves the server.
		return r.yield(ctx, Chunk{
			Keys:      nil,
			GateValue: map[string]any{"zRBAC_denied": true, "_signal": "navigate_back"},
		})
	}

	keys := prepared.ExecutableKeys()
	chunk := make([]string, 0, len(keys))
	i := 0
	if opts.StartKey != "" {
		if j := findKey(keys, opts.StartKey); j >= 0 {
			i = j
		}
	}

	for i < len(keys) {
		key := keys[i]
		value, _ := prepared.Get(key)
		expanded := ExpandShorthand(key, value)

		req := auth.FromStep(expanded)
		switch auth.Evaluate(req, e.authn, e.sess.Auth()) {
		case auth.Denied:
			i++
			continue
		case auth.DeniedGuest:
			return r.yield(ctx, Chunk{
				GateValue: map[string]any{"zRBAC_denied": true, "_signal": "navigate_back"},
			})
		}

		interpolated := e.interpolator(ec).Value(expanded)

		// Gates suspend before anything past them is produced. The
		// submitted form data becomes the step result.
		if block.IsGate(key) {
			if err := r.yield(ctx, Chunk{Keys: append(chunk, key), IsGate: true, GateValue: interpolated}); err != nil {
				return err
			}
			submitted, err := r.await(ctx)
			if err != nil {
				return err
			}
			if data, ok := submitted.(map[string]any); ok {
				ec.GateData = data
			}
			if aerr := ec.Acc.Append(KeyBase(key), submitted); aerr != nil {
				logging.WizardDebug("accumulator: %v", aerr)
			}
			chunk = chunk[:0]
			i++
			continue
		}

		result, derr := e.disp.Dispatch(ctx, key, interpolated, e.dispatchContext(ec))
		if derr != nil {
			if opts.Callbacks.OnError != nil {
				result = opts.Callbacks.OnError(key, derr)
			} else if opts.FailFast {
				return derr
			} else {
				logging.WizardError("step %s: %v", key, derr)
				i++
				continue
			}
		}

		// Untagged nested blocks run their keys through the shared
		// pipeline; an inner signal feeds the signal handling below.
		// Single-key signal blocks stay opaque for Normalize.
		if nested, ok := result.(*block.Block); ok && !block.IsMenu(key) {
			if _, isSignal := Normalize(nested); !isSignal {
				sub, nsig, nerr := e.runNested(ctx, nested, ec, opts.Callbacks)
				if nerr != nil {
					if opts.FailFast {
						return nerr
					}
					logging.WizardError("step %s: %v", key, nerr)
					i++
					continue
				}
				if nsig != SignalNone {
					result = string(nsig)
				} else {
					result = sub
				}
			}
		}

		// A menu with nothing realised pauses the run until the bridge
		// delivers the selection.
		if block.IsMenu(key) && result == nil {
			if err := r.yield(ctx, Chunk{
				Keys:      append(chunk, key),
				GateValue: map[string]any{"_paused": true},
			}); err != nil {
				return err
			}
			selection, err := r.await(ctx)
			if err != nil {
				return err
			}
			result = selection
			chunk = chunk[:0]
		} else {
			chunk = append(chunk, key)
		}

		if aerr := ec.Acc.Append(KeyBase(key), result); aerr != nil {
			logging.WizardDebug("accumulator: %v", aerr)
		}

		if s, ok := result.(string); ok && !IsSignal(s) {
			if j := findKey(keys, s); j >= 0 {
				e.jumpCrumbs(keys, i, j)
				i = j
				continue
			}
		}
		if sig, ok := Normalize(result); ok && sig.Terminating() {
			if len(chunk) > 0 {
				if err := r.yield(ctx, Chunk{Keys: chunk}); err != nil {
					return err
				}
			}
			return nil
		}
		if j := loopbackIndex(keys, i); j >= 0 {
			i = j
			continue
		}
		i++
	}

	if len(chunk) > 0 {
		return r.yield(ctx, Chunk{Keys: chunk})
	}
	return nil
}

func (r *Runner) yield(ctx context.Context, c Chunk) error {
	// Copy the key slice; the generator reuses its backing array.
	c.Keys = append([]string(nil), c.Keys...)
	select {
	case r.chunks <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) await(ctx context.Context) (any, error) {
	select {
	case v := <-r.resume:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
