package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRequestDistinguishesNullFromAbsent(t *testing.T) {
	var req UpdateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"rider_id": null, "customerName": "Ana"}`), &req))

	assert.True(t, req.RiderID.Set)
	assert.Nil(t, req.RiderID.Value)
	assert.True(t, req.CustomerName.Set)
	require.NotNil(t, req.CustomerName.Value)
	assert.Equal(t, "Ana", *req.CustomerName.Value)
	assert.False(t, req.CustomerPhone.Set)
	assert.False(t, req.Empty())
	assert.False(t, req.OnlyStatus())
}

func TestUpdateRequestEmpty(t *testing.T) {
	var req UpdateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	assert.True(t, req.Empty())

	require.NoError(t, json.Unmarshal([]byte(`{"status":"enroute","rider_id":4}`), &req))
	assert.True(t, req.OnlyStatus())
}

func TestFlagAcceptsNumbers(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"items":[],"is_delivery":1}`, true},
		{`{"items":[],"is_delivery":0}`, false},
		{`{"items":[],"is_delivery":true}`, true},
	}
	for _, tt := range tests {
		var req CreateOrderRequest
		require.NoError(t, json.Unmarshal([]byte(tt.body), &req), tt.body)
		assert.Equal(t, tt.want, req.Delivery(), tt.body)
	}

	var req CreateOrderRequest
	assert.Error(t, json.Unmarshal([]byte(`{"is_delivery":2}`), &req))
	assert.False(t, CreateOrderRequest{}.Delivery())
}
