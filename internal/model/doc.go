// Package model defines shared data types used across the botwatch client.
//
// Conventions:
//   - Timestamps from the bot service: int64 milliseconds since Unix epoch
//   - Local receive times: time.Time
//   - State payloads: opaque json.RawMessage, never interpreted by this layer
package model
