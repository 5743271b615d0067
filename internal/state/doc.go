// Package state implements the State Accessor, the single entry point
// consumers use to observe bot state.
//
// The Accessor merges two sources: the live snapshot from the connection Hub
// and a fallback snapshot polled over REST whenever the stream is down. The
// live source always wins while connected; fallback data is kept stale rather
// than blanked when a poll fails.
package state
