// Package registry tracks the participants of one chat session and fans
// messages out to their connections.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
)

var (
	// ErrNotFound is returned when a participant is not registered.
	ErrNotFound = errors.New("participant not found")
	// ErrNilChannel is returned when a human joins without a transport.
	ErrNilChannel = errors.New("channel is required")
	// ErrSendTimeout is returned by channels that could not accept a message in time.
	ErrSendTimeout = errors.New("send timed out")
	// ErrChannelClosed is returned by channels that are already torn down.
	ErrChannelClosed = errors.New("channel closed")
)

// Channel pushes frames to one human participant.
type Channel interface {
	// Send enqueues data, giving up when ctx is done.
	Send(ctx context.Context, data []byte) error
	Close() error
}

type entry struct {
	participant domain.Participant
	channel     Channel
}

// Registry is the authoritative roster of a session.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*entry
	order        []string
	counter      int

	namePrefix  string
	sendTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithNamePrefix sets the display-name prefix ("Participant" by default).
func WithNamePrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.namePrefix = prefix
		}
	}
}

// WithSendTimeout bounds how long a broadcast waits on any single channel.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithNow overrides the join timestamp source.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty registry.
func New(logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		participants: make(map[string]*entry),
		namePrefix:   "Participant",
		sendTimeout:  2 * time.Second,
		now:          time.Now,
		logger:       logger.With(zap.String("component", "registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join registers a human participant bound to ch.
func (r *Registry) Join(ch Channel) (domain.Participant, error) {
	if ch == nil {
		return domain.Participant{}, ErrNilChannel
	}
	p := r.add(uuid.New().String(), domain.ParticipantKindHuman, ch)
	r.logger.Info("Participant joined", zap.String("participant_id", p.ID), zap.String("name", p.DisplayName))
	return p, nil
}

// JoinSimulated registers a simulated participant. Callers decide how many
// simulated participants a session may hold.
func (r *Registry) JoinSimulated() domain.Participant {
	p := r.add("sim_"+uuid.New().String(), domain.ParticipantKindSimulated, nil)
	r.logger.Info("Simulated participant joined", zap.String("participant_id", p.ID), zap.String("name", p.DisplayName))
	return p
}

func (r *Registry) add(id string, kind domain.ParticipantKind, ch Channel) domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter++
	p := domain.Participant{
		ID:          id,
		DisplayName: fmt.Sprintf("%s %d", r.namePrefix, r.counter),
		Kind:        kind,
		JoinedAt:    r.now(),
	}
	r.participants[id] = &entry{participant: p, channel: ch}
	r.order = append(r.order, id)
	return p
}

// Leave removes a participant and closes its channel.
func (r *Registry) Leave(id string) error {
	r.mu.Lock()
	e, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.participants, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if e.channel != nil {
		if err := e.channel.Close(); err != nil {
			r.logger.Debug("Channel close failed", zap.String("participant_id", id), zap.Error(err))
		}
	}
	r.logger.Info("Participant left", zap.String("participant_id", id), zap.String("name", e.participant.DisplayName))
	return nil
}

// Get returns a snapshot of one participant.
func (r *Registry) Get(id string) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return e.participant, true
}

// HumanCount returns the number of human participants.
func (r *Registry) HumanCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.participants {
		if e.channel != nil {
			n++
		}
	}
	return n
}

// Roster returns display names in join order, humans and simulated alike.
func (r *Registry) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.participants[id].participant.DisplayName)
	}
	return names
}

// Humans returns snapshots of the human participants in join order.
func (r *Registry) Humans() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		if e := r.participants[id]; e.channel != nil {
			out = append(out, e.participant)
		}
	}
	return out
}

type target struct {
	id string
	ch Channel
}

func (r *Registry) channels() []target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]target, 0, len(r.participants))
	for _, id := range r.order {
		if e := r.participants[id]; e.channel != nil {
			out = append(out, target{id: id, ch: e.channel})
		}
	}
	return out
}

// Broadcast delivers text to every human channel concurrently. Each channel
// gets at most the send timeout; failures are logged, never returned.
// It returns the number of channels that accepted the message.
func (r *Registry) Broadcast(ctx context.Context, text string) int {
	return r.fanOut(ctx, []byte(text))
}

// BroadcastJSON marshals v and broadcasts it.
func (r *Registry) BroadcastJSON(ctx context.Context, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal broadcast: %w", err)
	}
	return r.fanOut(ctx, data), nil
}

func (r *Registry) fanOut(ctx context.Context, data []byte) int {
	targets := r.channels()
	if len(targets) == 0 {
		return 0
	}

	var (
		g         errgroup.Group
		mu        sync.Mutex
		delivered int
	)
	for _, t := range targets {
		g.Go(func() error {
			if err := r.sendOne(ctx, t, data); err != nil {
				r.logger.Warn("Broadcast delivery failed", zap.String("participant_id", t.id), zap.Error(err))
				return nil
			}
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return delivered
}

func (r *Registry) sendOne(ctx context.Context, t target, data []byte) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	return t.ch.Send(sendCtx, data)
}

// SendTo delivers a JSON message to a single participant.
func (r *Registry) SendTo(ctx context.Context, id string, v any) error {
	r.mu.RLock()
	e, ok := r.participants[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if e.channel == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return r.sendOne(ctx, target{id: id, ch: e.channel}, data)
}
