package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/xpkg/config"
	"restaurant-orders/internal/xpkg/logger"
)

func TestDecodeHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]any
		tenant  string
		order   int64
		wantErr bool
	}{
		{"amqp int64", map[string]any{"tenant_id": "T1", "order_id": int64(7)}, "T1", 7, false},
		{"amqp int32", map[string]any{"tenant_id": "T1", "order_id": int32(8)}, "T1", 8, false},
		{"kafka bytes", map[string]any{"tenant_id": "T2", "order_id": []byte("9")}, "T2", 9, false},
		{"string", map[string]any{"tenant_id": "T2", "order_id": "10"}, "T2", 10, false},
		{"no tenant", map[string]any{"order_id": int64(1)}, "", 0, true},
		{"no order", map[string]any{"tenant_id": "T1"}, "", 0, true},
		{"bad order", map[string]any{"tenant_id": "T1", "order_id": "x"}, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant, order, err := decodeHeaders(func(k string) any { return tt.headers[k] })
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.tenant, tenant)
			assert.Equal(t, tt.order, order)
		})
	}
}

func TestKafkaRelayConfiguration(t *testing.T) {
	reg := notify.NewRegistry(logger.Nop())
	a := NewKafka(&config.Kafka{Brokers: []string{"localhost:9092"}, Topic: "order-notifications"}, reg, logger.Nop())
	b := NewKafka(&config.Kafka{Brokers: []string{"localhost:9092"}, Topic: "order-notifications"}, reg, logger.Nop())
	defer a.Close()
	defer b.Close()

	assert.Equal(t, "order-notifications", a.writer.Topic)
	assert.NotEqual(t, a.reader.Config().GroupID, b.reader.Config().GroupID, "every instance reads the full stream")

	var _ notify.Relay = a
	var _ notify.Relay = (*RabbitMQ)(nil)
}
