package workflow

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind/backoff"
)

// Permanent marks a step error as not worth retrying. The step fails on
// the first attempt and the run is marked failed.
func Permanent(err error) error { return backoff.Permanent(err) }

// Step runs fn once per run. A step with a checkpoint is skipped; a
// step without one runs under the retry policy and is checkpointed when
// it succeeds.
func (w *Workflow) Step(name string, fn func(ctx context.Context) error) error {
	done, err := w.recall(name)
	if err != nil || done != nil {
		return err
	}
	return w.complete(name, fn, nil)
}

// StepWithResult is Step for a step that produces a value. The value is
// checkpointed with encoding/gob, so later activations get the recorded
// value back without running fn again.
func StepWithResult[T any](w *Workflow, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T

	done, err := w.recall(name)
	if err != nil {
		return result, err
	}
	if done != nil {
		if err := gob.NewDecoder(bytes.NewReader(done)).Decode(&result); err != nil {
			return result, fmt.Errorf("workflow %s: decode checkpoint %q: %w", w.run.Name, name, err)
		}
		return result, nil
	}

	run := func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}
	encode := func() ([]byte, error) {
		var buf bytes.Buffer
		err := gob.NewEncoder(&buf).Encode(result)
		return buf.Bytes(), err
	}
	if err := w.complete(name, run, encode); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// SleepUntil suspends the run until t. It returns nil when the sleep is
// checkpointed or t has already passed, recording the checkpoint in the
// latter case. Otherwise it returns a suspension that the handler must
// return unchanged; the runner then parks the run and schedules the wake.
func (w *Workflow) SleepUntil(name string, t time.Time) error {
	key := sleepKey(name)
	done, err := w.recall(key)
	if err != nil || done != nil {
		return err
	}

	if !w.clock.Now().Before(t) {
		return w.save(key, []byte{})
	}
	w.logger.Info("sleeping",
		slog.String("run_id", w.run.ID.String()),
		slog.String("step", name),
		slog.Time("wake_at", t),
	)
	return &suspendError{step: name, wakeAt: t}
}

// Sleep suspends for d measured from the first activation that reaches
// it; the deadline is itself a checkpointed step.
func (w *Workflow) Sleep(name string, d time.Duration) error {
	deadline, err := StepWithResult(w, "deadline:"+name, func(context.Context) (time.Time, error) {
		return w.clock.Now().Add(d), nil
	})
	if err != nil {
		return err
	}
	return w.SleepUntil(name, deadline)
}

// recall returns the checkpoint of name: nil when the step has not
// completed, non-nil otherwise.
func (w *Workflow) recall(name string) ([]byte, error) {
	data, err := w.store.GetCheckpoint(w.ctx, w.run.ID, name)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: get checkpoint %q: %w", w.run.Name, name, err)
	}
	if data != nil {
		w.logger.Debug("step already checkpointed",
			slog.String("run_id", w.run.ID.String()),
			slog.String("step", name),
		)
	}
	return data, nil
}

// complete runs fn and checkpoints it. encode supplies the checkpoint
// data; nil records an empty checkpoint.
func (w *Workflow) complete(name string, fn func(ctx context.Context) error, encode func() ([]byte, error)) error {
	started := time.Now()
	err := w.retry.Retry(w.ctx, fn, func(attempt int, err error) {
		w.logger.Warn("step failed, retrying",
			slog.String("run_id", w.run.ID.String()),
			slog.String("step", name),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	})
	if err != nil {
		w.emitter.EmitStepFailed(w.ctx, w.run, name, err)
		return fmt.Errorf("workflow %s step %q: %w", w.run.Name, name, err)
	}
	elapsed := time.Since(started)

	data := []byte{}
	if encode != nil {
		if data, err = encode(); err != nil {
			return fmt.Errorf("workflow %s: encode checkpoint %q: %w", w.run.Name, name, err)
		}
	}
	if err := w.save(name, data); err != nil {
		return err
	}
	w.emitter.EmitStepCompleted(w.ctx, w.run, name, elapsed)
	return nil
}

func (w *Workflow) save(name string, data []byte) error {
	if err := w.store.SaveCheckpoint(w.ctx, w.run.ID, name, data); err != nil {
		return fmt.Errorf("workflow %s: save checkpoint %q: %w", w.run.Name, name, err)
	}
	return nil
}
