// Package producer provides general-purpose event producers for the
// engine.
//
//   - Static emits a fixed list of events and finishes.
//   - Push accepts events submitted from outside, such as the HTTP ingest
//     endpoint.
//   - Poller calls a fetch function on an interval and emits what it
//     returns.
//
// Source-specific producers live in subpackages (secedgar, kafka).
package producer
