// Package remote manages the link to the ground station: it sends
// rate-limited telemetry frames and receives command sentences.
package remote
