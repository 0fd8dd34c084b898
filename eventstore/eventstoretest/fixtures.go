// Package eventstoretest centralizes fixture construction for the
// core's own tests, the way go.gazette.dev/core/brokertest and
// etcdtest centralize broker/Etcd fixtures for gazette's tests: a
// fresh in-memory persistence, a deterministic clock, and a sequential
// commit-id generator so test expectations don't depend on real time
// or random ids.
package eventstoretest

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"go.eventstore.dev/core/eventstore/client"
	"go.eventstore.dev/core/eventstore/memstore"
	"go.eventstore.dev/core/eventstore/pipeline"
)

// NewStore returns a fresh, empty in-memory Persistence.
func NewStore() *memstore.Store { return memstore.New() }

// NewClock returns a FakeClock fixed at an arbitrary, deterministic instant.
func NewClock() clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
}

// NewEventStore wires a fresh memstore.Store and fake clock behind an
// EventStore, registering hooks in the given order.
func NewEventStore(hooks ...interface{}) (*client.EventStore, *memstore.Store, clockwork.FakeClock) {
	var store = NewStore()
	var clock = NewClock()
	var es = client.New(store, pipeline.NewChain(hooks...), client.WithClock(clock))
	return es, store, clock
}

// IDSequence returns a closure producing deterministic, strictly
// increasing commit ids, for tests that need commit identity without
// depending on uuid.New()'s randomness.
func IDSequence() func() uuid.UUID {
	var n uint64
	return func() uuid.UUID {
		n++
		var id uuid.UUID
		id[8], id[9], id[10], id[11] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
		return id
	}
}
