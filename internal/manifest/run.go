package manifest

import (
	"context"
	"sync"
	"time"

	store "github.com/goliatone/go-store"
)

// Outcome is the result of one call of a run, in manifest order.
type Outcome struct {
	Call     Call
	Instance store.ActionInstance
	Err      error
}

// RunOptions tune Run.
type RunOptions struct {
	// Interval between observed snapshots while calls are in flight. Zero
	// observes only the final state.
	Interval time.Duration
	// Observe receives snapshots, the last one after every call settled.
	Observe func(store.Snapshot)
}

// Run dispatches calls concurrently, each after its own delay, and waits
// for all of them. Call failures are reported in the outcomes; the returned
// error is only set when ctx ends the run early.
func Run(ctx context.Context, s *store.Store, calls []Call, opts RunOptions) ([]Outcome, error) {
	outcomes := make([]Outcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		outcomes[i].Call = call
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			if call.After > 0 {
				timer := time.NewTimer(call.After)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-ctx.Done():
					outcomes[i].Err = ctx.Err()
					return
				}
			}
			handle, err := s.Dispatch(ctx, call.Modifier, call.Args...)
			if err != nil {
				outcomes[i].Err = err
				return
			}
			outcomes[i].Instance = handle.Instance()
			outcomes[i].Err = handle.Wait(ctx)
		}(i, call)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var tick <-chan time.Time
	if opts.Interval > 0 && opts.Observe != nil {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			opts.Observe(s.State())
		case <-done:
			if opts.Observe != nil {
				opts.Observe(s.State())
			}
			return outcomes, ctx.Err()
		}
	}
}
