// Package queue defines the at-least-once Queue Transport capability spec.md
// §6 names: a job id is delivered to exactly one worker at a time via a
// visibility timeout, and is only removed after the worker's terminal
// persistence step succeeds.
package queue

import (
	"context"
	"time"
)

// Message is one delivered queue entry. ReceiptHandle identifies this
// particular delivery (not the job) so Delete/ChangeVisibility can target
// it without racing a concurrent redelivery.
type Message struct {
	JobID         string
	ReceiptHandle string
}

// Transport is the minimal at-least-once queue contract the Orchestrator
// Worker drives (spec.md §4.2 algorithm steps 1–7).
type Transport interface {
	// Send enqueues jobID for delivery, optionally after delay.
	Send(ctx context.Context, jobID string, delay time.Duration) error

	// Receive long-polls for up to max messages, each invisible to other
	// consumers for visibilityTimeout until Delete or ChangeVisibility is
	// called.
	Receive(ctx context.Context, max int, visibilityTimeout time.Duration) ([]Message, error)

	// Delete acks a message, permanently removing it from the queue. Callers
	// must only call this after the corresponding terminal persistence step
	// succeeds (spec.md §4.2 step 7).
	Delete(ctx context.Context, msg Message) error

	// ChangeVisibility releases a message back for redelivery after delay —
	// used when a job's backoff_until has not yet elapsed (spec.md §4.2 step 2).
	ChangeVisibility(ctx context.Context, msg Message, delay time.Duration) error
}
