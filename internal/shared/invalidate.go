package shared

import "context"

// Invalidator drops derived read models after a committed write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
