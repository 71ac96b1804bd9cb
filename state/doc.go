// Package state holds the shared scoreboard state for the dashboard server.
//
// The Store sits between two very different callers: the simulation loop,
// which writes score data every tick and must never block on the network,
// and the WebSocket layer, which reads snapshots for broadcast and raises
// command flags on behalf of the operator. A single mutex guards everything;
// no method does I/O while holding it.
//
// Command flags are edge-triggered booleans, not queues. If the operator
// clicks Run three times before the simulation loop polls, the loop sees one
// request. That coalescing is deliberate: the loop acts on "was the button
// pressed since my last tick", and a backlog of stale clicks firing runs
// after the fact would be worse than dropping the repeats.
package state
