// Package agent describes the effect primitives an automation agent offers
// to node executors (chat, whispers, inventory). Concrete game adapters live
// outside this repository; Recorder is the in-process implementation used by
// the server when no agent is attached and by tests.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrItemNotFound is returned when an inventory operation names an item
	// the agent does not hold.
	ErrItemNotFound = errors.New("item not found")
	// ErrUnavailable is returned when the agent cannot be reached.
	ErrUnavailable = errors.New("agent unavailable")
)

// Adapter is the set of effects node executors may ask an agent to perform.
type Adapter interface {
	Chat(ctx context.Context, message string) error
	Whisper(ctx context.Context, username, message string) error
	// Deposit moves up to count items into the nearest container and returns
	// how many were moved.
	Deposit(ctx context.Context, item string, count int) (int, error)
}

// Message is one chat line sent through a Recorder.
type Message struct {
	To   string `json:"to,omitempty"`
	Text string `json:"text"`
}

// Recorder is an Adapter that keeps everything it was asked to do in memory
// and backs deposits with a simple inventory.
type Recorder struct {
	mu        sync.Mutex
	logger    *slog.Logger
	messages  []Message
	inventory map[string]int
	offline   bool
}

// NewRecorder returns a Recorder holding the given inventory.
func NewRecorder(logger *slog.Logger, inventory map[string]int) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	inv := make(map[string]int, len(inventory))
	for k, v := range inventory {
		inv[k] = v
	}
	return &Recorder{logger: logger, inventory: inv}
}

// SetOffline makes every subsequent call fail with ErrUnavailable.
func (r *Recorder) SetOffline(offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = offline
}

// Chat implements Adapter.
func (r *Recorder) Chat(ctx context.Context, message string) error {
	return r.send(ctx, "", message)
}

// Whisper implements Adapter.
func (r *Recorder) Whisper(ctx context.Context, username, message string) error {
	return r.send(ctx, username, message)
}

func (r *Recorder) send(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return ErrUnavailable
	}
	r.messages = append(r.messages, Message{To: to, Text: text})
	r.logger.Info("Agent sent message.", "to", to, "text", text)
	return nil
}

// Deposit implements Adapter.
func (r *Recorder) Deposit(ctx context.Context, item string, count int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return 0, ErrUnavailable
	}
	held := r.inventory[item]
	if held == 0 {
		return 0, ErrItemNotFound
	}
	if count <= 0 || count > held {
		count = held
	}
	r.inventory[item] = held - count
	r.logger.Info("Agent deposited items.", "item", item, "count", count)
	return count, nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Held returns how many of an item the agent still holds.
func (r *Recorder) Held(item string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inventory[item]
}
