package notify

import "context"

// Message is one serialized envelope addressed to a tenant and order.
type Message struct {
	TenantID string
	OrderID  int64
	Payload  []byte
}

// Relay carries messages from the broadcaster to the registries of every
// running instance.
type Relay interface {
	Publish(ctx context.Context, msg Message) error
	// Run consumes messages published by any instance until ctx is done.
	Run(ctx context.Context) error
	Close() error
}

// LocalRelay delivers straight into this process's registry.
type LocalRelay struct {
	sink Sink
}

func NewLocalRelay(sink Sink) *LocalRelay {
	return &LocalRelay{sink: sink}
}

func (l *LocalRelay) Publish(_ context.Context, msg Message) error {
	l.sink.Deliver(msg.TenantID, msg.OrderID, msg.Payload)
	return nil
}

func (l *LocalRelay) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (l *LocalRelay) Close() error { return nil }
