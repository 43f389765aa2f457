// Package capture samples a rendered surface over a bounded time window and
// assembles the result into an artifact: a PNG still, an animated GIF with
// per-frame delays, or an audio/video container produced by a
// StreamEncoder.
//
// An Engine runs at most one Session at a time. A session moves through
// Idle, Capturing, Encoding and then Completed or Failed. The engine returns
// to Idle once the caller observes the result through Wait or Result.
// Stopping a session early still yields a valid, truncated artifact as long
// as at least one frame was captured.
package capture
