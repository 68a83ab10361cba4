package hermes

import (
	"log/slog"

	"github.com/MikeSquared-Agency/intake/internal/engine"
)

// SubjectPrefix is prepended to the event kind, e.g. intake.message.appended.
const SubjectPrefix = "intake."

// Publisher is the part of Client the forwarder needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Forwarder republishes engine events on NATS so other processes can follow
// the widget's state.
type Forwarder struct {
	pub    Publisher
	logger *slog.Logger
}

func NewForwarder(pub Publisher, logger *slog.Logger) *Forwarder {
	return &Forwarder{pub: pub, logger: logger}
}

// Attach subscribes the forwarder to bus and returns the unsubscribe func.
func (f *Forwarder) Attach(bus *engine.Bus) func() {
	return bus.Subscribe(f.Handle)
}

func (f *Forwarder) Handle(ev engine.Event) {
	subject := SubjectPrefix + string(ev.Kind)
	if err := f.pub.Publish(subject, ev); err != nil {
		f.logger.Warn("failed to forward event", "subject", subject, "error", err)
	}
}
