package bus

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Handlers subscribe to an event type within a topic. Publishing delivers
// synchronously in the caller goroutine, so a handler sees events in publish
// order; handler errors are joined and returned. Metrics are only collected
// while an observer is registered.
type EventBus interface {
	// CreateTopic declares a topic. Repeat declarations are idempotent.
	CreateTopic(name string) error
	// DeleteTopic removes a topic and all of its subscriptions.
	DeleteTopic(name string) error
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is a no-op.
	Unsubscribe(Subscription) error
	// PublishToTopic delivers the event to the subscribers of event.Type in
	// topic. The event is dropped silently if any filter rejects it.
	PublishToTopic(topic string, event Event, filters ...EventFilter) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of counters gathered while observed.
	GetMetrics() EventBusMetrics
	GetTopics() []TopicInfo
}

// Event is an immutable message transported by the bus. Time is the
// simulation clock in seconds, not wall time.
type Event struct {
	Type   string
	Source string
	Time   float64
	Data   any
}

// NewEvent builds an Event.
func NewEvent(typ, src string, time float64, data any) Event {
	return Event{Type: typ, Source: src, Time: time, Data: data}
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
	// EventFilter decides whether an event should be delivered.
	EventFilter func(event Event) bool
)

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(topic string, event Event)
	OnDelivered(topic string, event Event, handlers int, err error)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
}

type TopicInfo struct {
	Name       string
	EventTypes int
	Subs       int
}
