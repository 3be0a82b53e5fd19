// Package yield defines the cooperative pause points of a simulation.
//
// The simulator calls Yield at points where it is safe to pause. The host
// decides what pausing means: rescheduling the goroutine, waiting for a frame
// tick, or nothing at all. A non-nil error from Yield stops the run at that
// point, which is how hosts cancel work they are pacing.
package yield

import (
	"context"
	"runtime"
)

// Yielder is implemented by hosts that want control at pause points.
type Yielder interface {
	Yield(ctx context.Context) error
}

// Func adapts a function to the Yielder interface.
type Func func(ctx context.Context) error

// Yield implements Yielder for Func.
func (fn Func) Yield(ctx context.Context) error {
	return fn(ctx)
}

// Gosched gives up the processor and reports context cancellation.
var Gosched Yielder = Func(func(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
})

// Nop only reports context cancellation.
var Nop Yielder = Func(func(ctx context.Context) error {
	return ctx.Err()
})

// Or returns y, or Gosched when y is nil.
func Or(y Yielder) Yielder {
	if y == nil {
		return Gosched
	}
	return y
}
