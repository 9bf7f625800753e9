package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesActionAndMasksPhone(t *testing.T) {
	var buf bytes.Buffer
	mylog := NewWithWriter("order-service", "debug", &buf)

	mylog.Action("order_created").Info("Order created", "order_id", 7, "customer_phone", "+15550001111")
	require.NoError(t, mylog.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order_created", entry["action"])
	assert.Equal(t, "order-service", entry["service"])
	assert.Equal(t, "Order created", entry["message"])
	assert.Equal(t, "****", entry["customer_phone"])
	assert.EqualValues(t, 7, entry["order_id"])
}

func TestLoggerErrorCarriesErrorText(t *testing.T) {
	var buf bytes.Buffer
	mylog := NewWithWriter("order-service", "info", &buf)

	mylog.Action("db_connection_failed").Error("Failed to connect to database", errors.New("dial tcp: refused"))
	require.NoError(t, mylog.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.Split(buf.Bytes(), []byte("\n"))[0], &entry))
	assert.Equal(t, "dial tcp: refused", entry["error"])
	assert.Equal(t, "error", entry["level"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	mylog := NewWithWriter("order-service", "warn", &buf)

	mylog.Info("dropped")
	mylog.Debug("dropped too")
	assert.Empty(t, buf.String())
}
