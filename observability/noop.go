package observability

import "context"

// NoOpObserver discards all events. Benchmarks and bulk training runs
// select it to keep event emission out of the step time.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}
