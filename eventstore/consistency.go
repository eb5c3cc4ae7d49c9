package eventstore

import "context"

// ConsistencyLevel defines the consistency requirements for read operations.
type ConsistencyLevel int

const (
	// StrongConsistency requires reads from the primary database to ensure
	// read-after-write consistency. This is the default, because writers usually
	// load a stream right before they append to it.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica database, trading consistency
	// for performance. Suitable for replays feeding read models that tolerate
	// slightly stale data.
	EventualConsistency
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "eventstore.consistency_level"

// WithStrongConsistency returns a context that signals reads must use the primary database.
//
// Example usage:
//
//	ctx = eventstore.WithStrongConsistency(ctx)
//	stream, err := store.Load(ctx, streamName, 0, nil)
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that signals reads may use a replica database.
// Reads inside an open transaction always use the transaction.
//
// Example usage:
//
//	ctx = eventstore.WithEventualConsistency(ctx)
//	iterator, err := store.Replay(ctx, streamName, since, nil)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context.
// If no consistency level is set, it returns StrongConsistency as the safe default.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging and debugging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
