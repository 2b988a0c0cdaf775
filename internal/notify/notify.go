package notify

import "go.uber.org/zap"

// Event kinds published by the core services. A presentation layer renders
// these as transient user-facing messages; the core never formats UI text.
const (
	KindOrderPlaced        = "order_placed"
	KindOrderStatusUpdated = "order_status_updated"
	KindOrderDeleted       = "order_deleted"
	KindInsufficientStock  = "insufficient_stock"
	KindDealerConnected    = "dealer_connected"
	KindDealerDisconnected = "dealer_disconnected"
)

// Event is a success or failure notification emitted by the core.
type Event struct {
	Kind    string
	Failure bool
	Message string
	Fields  map[string]interface{}
}

// Notifier receives core events. Implementations must not block.
type Notifier interface {
	Publish(event Event)
}

type zapNotifier struct {
	logger *zap.Logger
}

// NewZapNotifier publishes events to the structured log.
func NewZapNotifier(logger *zap.Logger) Notifier {
	return &zapNotifier{logger: logger}
}

func (n *zapNotifier) Publish(event Event) {
	fields := []zap.Field{zap.String("kind", event.Kind)}
	for key, value := range event.Fields {
		fields = append(fields, zap.Any(key, value))
	}

	if event.Failure {
		n.logger.Warn(event.Message, fields...)
		return
	}
	n.logger.Info(event.Message, fields...)
}

type nopNotifier struct{}

// NewNop returns a Notifier that discards all events.
func NewNop() Notifier { return nopNotifier{} }

func (nopNotifier) Publish(Event) {}
