// Package engine drives arena game sessions: one turn-based state machine
// executing a single step at a time against the generation gateway,
// persisting every outcome before publishing it to observers.
package engine

import (
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/modelarena/arena/internal/platform/id"
	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/events"
	"github.com/modelarena/arena/internal/services/arena/gateway"
	"github.com/modelarena/arena/internal/services/arena/scoring"
	"github.com/modelarena/arena/internal/services/arena/storage"
)

// defaultTopicMenu seeds topic selection when no menu is configured.
var defaultTopicMenu = []string{
	"History",
	"Science",
	"Geography",
	"Literature",
	"Technology",
	"Arts",
}

// Engine owns the active session and serializes every mutating operation.
// It is the single writer: advance, undo, and lifecycle transitions all go
// through its lock, and the in-flight flag rejects overlapping step work
// while a gateway call is running outside the lock.
type Engine struct {
	mu           sync.Mutex
	stepInFlight bool

	stores  storage.Stores
	gateway gateway.Gateway
	broker  *events.Broker
	policy  scoring.Policy

	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
	topicMenu   []string

	// Cached active state. Authoritative copies live in the stores; the
	// cache avoids re-reading them on every advance.
	session *domain.GameSession
	round   *domain.Round
	states  map[string]*domain.ParticipantState
	roster  map[string]storage.Participant

	// failures counts consecutive failures per step position, keyed by
	// round/stepType/actor. Exceeding the retry ceiling fails the round.
	failures map[string]int

	// undoSpent blocks a second consecutive undo. Set when an undo
	// succeeds, cleared when a step completes.
	undoSpent bool

	auto *autoDriver
}

// Options configures an Engine.
type Options struct {
	Stores  storage.Stores
	Gateway gateway.Gateway
	Broker  *events.Broker
	// Policy aggregates judgments; defaults to the weighted mean with the
	// settings-store master weight.
	Policy scoring.Policy
	// TopicMenu overrides the default topic choices offered to masters.
	TopicMenu []string
	Clock     func() time.Time
	IDGen     func() (string, error)
}

// New creates an Engine.
func New(options Options) *Engine {
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.IDGen == nil {
		options.IDGen = id.NewID
	}
	if options.Broker == nil {
		options.Broker = events.NewBroker(0)
	}
	menu := options.TopicMenu
	if len(menu) == 0 {
		menu = defaultTopicMenu
	}
	return &Engine{
		stores:      options.Stores,
		gateway:     options.Gateway,
		broker:      options.Broker,
		policy:      options.Policy,
		clock:       options.Clock,
		idGenerator: options.IDGen,
		tracer:      otel.Tracer("arena.engine"),
		topicMenu:   menu,
		failures:    make(map[string]int),
	}
}

// Broker exposes the event broker for stream subscribers.
func (e *Engine) Broker() *events.Broker {
	return e.broker
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// participantName resolves a roster display name, falling back to the ID.
func (e *Engine) participantName(participantID string) string {
	if participant, ok := e.roster[participantID]; ok && participant.Name != "" {
		return participant.Name
	}
	return participantID
}

// participantModel resolves the model identifier for a participant.
func (e *Engine) participantModel(participantID string) string {
	if participant, ok := e.roster[participantID]; ok && participant.Model != "" {
		return participant.Model
	}
	return participantID
}

func (e *Engine) publish(kind events.Kind, payload any) {
	e.broker.Publish(events.Event{Kind: kind, Timestamp: e.now(), Payload: payload})
}

func (e *Engine) logf(format string, args ...any) {
	log.Printf(format, args...)
}
