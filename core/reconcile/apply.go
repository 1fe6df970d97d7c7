package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Handler performs the writes of one kind of child record.
type Handler[T any] struct {
	Kind   string // used in error messages, e.g. "article"
	Create func(ctx context.Context, item T) error
	Update func(ctx context.Context, prev, next T) error
	Remove func(ctx context.Context, item T) error
}

// Failure is an action that could not be applied.
type Failure struct {
	Op   Op
	Item interface{}
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %+v: %v", f.Op, f.Item, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// ApplyError lists every action of a batch that failed.
type ApplyError struct {
	Kind     string
	Failures []Failure
}

func (e *ApplyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "reconciling %s: %d action(s) failed: ", e.Kind, len(e.Failures))
	b.WriteString(e.Err().Error())
	return b.String()
}

// Err combines the failures into a single multierr error.
func (e *ApplyError) Err() error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return multierr.Combine(errs...)
}

func (e *ApplyError) Unwrap() []error {
	return multierr.Errors(e.Err())
}

// Apply dispatches every action to h, running at most limit of them at once (no limit when <= 0).
// A failing action does not stop the others: Apply waits for all of them and returns an
// *ApplyError holding every failure, or nil.
func Apply[T any](ctx context.Context, actions []Action[T], h Handler[T], limit int) error {
	if len(actions) == 0 {
		return nil
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures []Failure
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, act := range actions {
		act := act
		g.Go(func() error {
			if err := dispatch(ctx, act, h); err != nil {
				mu.Lock()
				failures = append(failures, Failure{Op: act.Op, Item: act.Item, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		return &ApplyError{Kind: h.Kind, Failures: failures}
	}
	return nil
}

func dispatch[T any](ctx context.Context, act Action[T], h Handler[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch act.Op {
	case Create:
		return h.Create(ctx, act.Item)
	case Update:
		return h.Update(ctx, act.Previous, act.Item)
	case Remove:
		return h.Remove(ctx, act.Item)
	}
	return fmt.Errorf("unknown op %d", act.Op)
}
