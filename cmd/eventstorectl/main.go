// Command eventstorectl is a small inspection tool over the reference
// in-memory Persistence (eventstore/memstore). It exists to exercise
// EventStore.CreateStream, CommitChanges, OpenStream, and
// Persistence.GetStreamsToSnapshot end to end. Each subcommand
// constructs its Persistence with memstore.New(); the tool has no
// option for selecting another backend.
//
// memstore holds no state across process invocations, so each
// subcommand seeds its own demonstration data before acting on it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"go.eventstore.dev/core/eventstore"
	"go.eventstore.dev/core/eventstore/client"
	"go.eventstore.dev/core/eventstore/memstore"
)

var Config = new(struct {
	Bucket string `long:"bucket" default:"default" description:"Bucket to operate against."`
})

func seed(ctx context.Context, es *client.EventStore, streamID string, count int) error {
	var s = es.CreateStream(Config.Bucket, streamID)
	for i := 0; i < count; i++ {
		var body, _ = json.Marshal(map[string]int{"n": i})
		if err := s.Add(eventstore.EventMessage{Body: body}); err != nil {
			return err
		}
	}
	return s.CommitChanges(ctx, uuid.New())
}

// cmdDump seeds, then replays, a stream's committed events as
// line-delimited JSON.
type cmdDump struct {
	Stream string `long:"stream" default:"demo" description:"Stream to seed and dump."`
	Count  int    `long:"count" default:"3" description:"Number of demonstration events to seed."`
}

func (cmd *cmdDump) Execute([]string) error {
	var store = memstore.New()
	var es = client.New(store, nil)
	var ctx = context.Background()

	if err := seed(ctx, es, cmd.Stream, cmd.Count); err != nil {
		return err
	}

	var s, err = es.OpenStream(ctx, Config.Bucket, cmd.Stream, 0, 0)
	if err != nil {
		return err
	}
	var enc = json.NewEncoder(os.Stdout)
	for i, evt := range s.CommittedEvents() {
		if err := enc.Encode(struct {
			Revision int             `json:"revision"`
			Headers  map[string]any  `json:"headers"`
			Body     json.RawMessage `json:"body"`
		}{Revision: i + 1, Headers: s.CommittedHeaders(), Body: evt.Body}); err != nil {
			return err
		}
	}
	return nil
}

// cmdStreamsToSnapshot seeds a few streams, then lists those whose head
// has drifted far enough from their most recent snapshot (none, in this
// demonstration) to warrant a new one.
type cmdStreamsToSnapshot struct {
	Threshold int64 `long:"threshold" default:"2" description:"Minimum (head - snapshot) revision gap."`
}

func (cmd *cmdStreamsToSnapshot) Execute([]string) error {
	var store = memstore.New()
	var es = client.New(store, nil)
	var ctx = context.Background()

	for _, streamID := range []string{"alpha", "beta"} {
		if err := seed(ctx, es, streamID, 5); err != nil {
			return err
		}
	}

	var heads, err = store.GetStreamsToSnapshot(ctx, Config.Bucket, cmd.Threshold)
	if err != nil {
		return err
	}
	for _, h := range heads {
		fmt.Printf("%s\thead=%d\tsnapshot=%d\n", h.StreamID, h.HeadRevision, h.SnapshotRevision)
	}
	return nil
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	var must = func(err error) {
		if err != nil {
			log.WithField("err", err).Fatal("failed to register command")
		}
	}

	_, err := parser.AddCommand("dump", "Seed and dump a stream",
		"Append demonstration events to a stream, commit them, then replay and print them.", &cmdDump{})
	must(err)
	_, err = parser.AddCommand("streams-to-snapshot", "List streams needing a snapshot",
		"Seed demonstration streams, then list those whose head has drifted far enough from their last snapshot.", &cmdStreamsToSnapshot{})
	must(err)

	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
