// Package duetto is an event orchestration engine.
//
// An Engine runs a set of producers concurrently and merges everything
// they emit into a single ingestion stream. Each event is run through a
// processing chain (dedup, filters, classification). Events that survive
// are broadcast to live subscribers and delivered to external channels at
// the same time.
//
// # Basic Usage
//
//	dedup, _ := stage.NewDedup("dedup", 1000, stage.ScopeGlobal)
//	c := chain.MustNew([]chain.Stage{
//	    dedup,
//	    stage.NewPriority("priority", event.Medium, nil),
//	})
//	engine := duetto.New(producers, c,
//	    duetto.WithSubscribers(subscriber.NewRegistry()),
//	    duetto.WithFanout(delivery.NewFanout(channels)),
//	    duetto.WithLogger(logger),
//	)
//	if err := engine.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Ordering and Backpressure
//
// Emit blocks until the event has been fully processed, so each
// producer's events are handled in the order it emitted them and a slow
// pipeline slows the producer down. Different producers never wait on
// each other, and no order is promised between them.
//
// # Failure Isolation
//
// A producer that returns an error or panics is marked Failed and is not
// restarted; the others keep running. Stage errors drop the event. A
// failing subscriber is removed, and a failing channel only affects its
// own delivery.
//
// # Shutdown
//
// Stop cancels the producers, waits for them up to a grace period, closes
// ingestion, and then waits for in-flight events to finish delivery.
package duetto
