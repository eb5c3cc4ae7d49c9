package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/sqlengine"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/testutil/sqlengine/config"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/testutil/sqlengine/helper"
)

const (
	// NumAggregates - number of users to create, each one gets its own aggregate_id - adapt as needed.
	NumAggregates = 10000

	// MaxEventsPerAggregate - every user gets between 1 and this many events - adapt as needed.
	MaxEventsPerAggregate = 20

	// AggregatesPerTransaction - the histories of this many users are appended in one transaction.
	AggregatesPerTransaction = 100
)

// Seeds the user stream table of the Postgres test database with fixture events, e.g. for benchmarks.
// ADAPTER_TYPE is not evaluated, the seeder always uses the pgx pool.
func main() {
	if err := SeedFixtureEvents(context.Background()); err != nil {
		log.Fatalf("Error seeding fixture events: %v", err)
	}
}

func SeedFixtureEvents(ctx context.Context) error {
	startTime := time.Now()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pool, err := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolTestConfig())
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	es, err := sqlengine.NewEventStoreFromPGXPool(pool)
	if err != nil {
		return fmt.Errorf("failed to create event store: %w", err)
	}

	streamName := eventstore.BuildStreamName(helper.UserStream)
	if err = es.CreateSchemaFor(ctx, streamName, []string{helper.MetadataKeyAggregate, helper.MetadataKeyTag}); err != nil {
		return fmt.Errorf("failed to create the stream table: %w", err)
	}

	clock := time.Now().UTC().Add(-time.Duration(NumAggregates*MaxEventsPerAggregate) * time.Millisecond)
	totalEvents := 0

	for first := 0; first < NumAggregates; first += AggregatesPerTransaction {
		var batch eventstore.Messages

		for range min(AggregatesPerTransaction, NumAggregates-first) {
			history, nextClock, historyErr := userHistory(clock)
			if historyErr != nil {
				return historyErr
			}

			batch = append(batch, history...)
			clock = nextClock
		}

		if err = es.InTransaction(ctx, func(ctx context.Context) error {
			return es.AppendTo(ctx, streamName, batch)
		}); err != nil {
			return fmt.Errorf("failed to append fixture events: %w", err)
		}

		totalEvents += len(batch)
		logger.Info("fixture events appended", "aggregates", min(first+AggregatesPerTransaction, NumAggregates), "events", totalEvents)
	}

	logger.Info(
		"seeding finished",
		"table", es.TableFor(streamName),
		"events", totalEvents,
		"duration", time.Since(startTime).Round(time.Millisecond).String(),
	)

	return nil
}

func userHistory(clock time.Time) (eventstore.Messages, time.Time, error) {
	aggregateID, err := uuid.NewV7()
	if err != nil {
		return nil, clock, fmt.Errorf("failed to generate an aggregate id: %w", err)
	}

	//nolint:gosec
	count := 1 + rand.IntN(MaxEventsPerAggregate)
	history := make(eventstore.Messages, 0, count)
	history = append(history, helper.FixtureUserRegistered(aggregateID, 1, clock))

	for version := 2; version <= count; version++ {
		clock = clock.Add(time.Millisecond)

		tag := helper.MetadataValuePerson
		if rand.IntN(2) == 0 { //nolint:gosec
			tag = helper.MetadataValueCustomer
		}

		history = append(history, helper.FixtureUserEmailChanged(aggregateID, eventstore.Version(version), clock, tag))
	}

	return history, clock.Add(time.Millisecond), nil
}
