// Package connection implements the shared stream connection to the bot service.
//
// The Hub guarantees that at most one WebSocket connection exists per process
// no matter how many consumers subscribe:
//   - first subscriber dials, last unsubscribe tears down and clears all cached state
//   - unintentional closes reconnect with exponential backoff (one pending attempt)
//   - a keepalive ping keeps intermediaries from idling the connection out
//   - inbound snapshot/tick/event frames fan out to every subscriber in arrival order
package connection
