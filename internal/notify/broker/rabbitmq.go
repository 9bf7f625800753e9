// Package broker relays order envelopes between instances through RabbitMQ
// or Kafka so every instance's subscribers see every event.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/xpkg/config"
	"restaurant-orders/internal/xpkg/logger"
)

const (
	headerTenant   = "tenant_id"
	headerOrder    = "order_id"
	reconnectDelay = 5 * time.Second
)

var errNoChannel = errors.New("rabbitmq channel is not open")

type RabbitMQ struct {
	cfg   *config.RabbitMQ
	sink  notify.Sink
	mylog logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitMQ connects and declares the fanout exchange.
func NewRabbitMQ(cfg *config.RabbitMQ, sink notify.Sink, mylog logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		cfg:   cfg,
		sink:  sink,
		mylog: mylog,
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrRMQConn, err)
	}
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.cfg.URL())
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	err = ch.ExchangeDeclare(
		r.cfg.Exchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn, r.ch = conn, ch
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQ) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil && !r.conn.IsClosed() && r.ch != nil && !r.ch.IsClosed()
}

func (r *RabbitMQ) Publish(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		return errNoChannel
	}

	headers := amqp.Table{
		headerTenant: msg.TenantID,
		headerOrder:  msg.OrderID,
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers[k] = v
	}

	return ch.PublishWithContext(ctx,
		r.cfg.Exchange, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Headers:     headers,
			Body:        msg.Payload,
		})
}

// Run consumes through an exclusive server-named queue bound to the
// exchange, reconnecting until ctx is done.
func (r *RabbitMQ) Run(ctx context.Context) error {
	log := r.mylog.Action("rabbitmq_relay")
	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Error("Relay consumer stopped, reconnecting", err)

		if err := r.reconnect(ctx); err != nil {
			return nil
		}
		log.Info("rabbitmq reconnected")
	}
}

func (r *RabbitMQ) consume(ctx context.Context) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return errNoChannel
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", r.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for d := range deliveries {
		tenantID, orderID, err := decodeHeaders(func(k string) any { return d.Headers[k] })
		if err != nil {
			r.mylog.Action("relay_decode_failed").Warn("Dropping malformed relay message", "error", err.Error())
			continue
		}
		r.sink.Deliver(tenantID, orderID, d.Body)
	}
	return errors.New("delivery channel closed")
}

func (r *RabbitMQ) reconnect(ctx context.Context) error {
	t := time.NewTicker(reconnectDelay)
	defer t.Stop()
	log := r.mylog.Action("rabbitmq_reconnecting")

	for {
		select {
		case <-t.C:
			r.closeConn()
			err := r.connect()
			if err == nil {
				return nil
			}
			log.Warn("rabbitmq failed to reconnect", "error", err.Error())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *RabbitMQ) closeConn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil && !r.conn.IsClosed() {
		_ = r.conn.Close()
	}
	r.conn, r.ch = nil, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

// decodeHeaders reads the routing headers written by Publish.
func decodeHeaders(get func(key string) any) (string, int64, error) {
	tenantID, ok := get(headerTenant).(string)
	if !ok || tenantID == "" {
		return "", 0, errors.New("missing tenant_id header")
	}
	var orderID int64
	switch v := get(headerOrder).(type) {
	case int64:
		orderID = v
	case int32:
		orderID = int64(v)
	case int:
		orderID = int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", 0, fmt.Errorf("bad order_id header: %w", err)
		}
		orderID = n
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return "", 0, fmt.Errorf("bad order_id header: %w", err)
		}
		orderID = n
	default:
		return "", 0, errors.New("missing order_id header")
	}
	return tenantID, orderID, nil
}
