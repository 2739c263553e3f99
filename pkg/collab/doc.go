// Package collab provides the public data model and Redis event client for the
// collab acceptance engine.
//
// # Overview
//
// A run dispatches an offer to a pool of candidates. Every candidate answers
// exactly once (accept or reject) after a randomised delay, and the run locks
// the moment the required quota of accepted candidates is reached. The types in
// this package are what external consumers (dashboards, the CLI, the watch
// stream) see: candidates and their statuses, point-in-time run snapshots and
// the lifecycle events the scheduler emits.
//
// # Core Concepts
//
// Candidates carry immutable attributes (followers, engagement, authenticity,
// niche) and a status that moves from pending to accepted or rejected. Statuses
// never return to pending within a run.
//
// Snapshots are read-only copies of a run taken under the scheduler's lock. They
// are safe to render from any goroutine.
//
// Events describe every state change of a run. They are delivered in the order
// the state changed and carry a per-scheduler sequence number.
//
// # Redis Schema
//
// Events are published as JSON on a single Pub/Sub channel per instance:
//
//	collab:{instance_name}:run_events
//
// Nothing is stored in Redis; the channel only feeds live observers such as
// `collab watch`.
//
// # Usage Example
//
//	c, err := collab.NewCandidate(1, "Priya Eats", collab.Attributes{
//		Followers:    120000,
//		Engagement:   4.2,
//		Authenticity: 88,
//		Niche:        collab.NicheFood,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
package collab
