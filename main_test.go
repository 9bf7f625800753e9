package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitMode(t *testing.T) {
	tests := []struct {
		args     []string
		wantMode string
		wantRest []string
	}{
		{[]string{"--mode=order-service", "--port=4000"}, "order-service", []string{"--port=4000"}},
		{[]string{"--port", "4000", "--mode", "notification-subscriber"}, "notification-subscriber", []string{"--port", "4000"}},
		{[]string{"--help"}, "help", nil},
		{[]string{"--mode=order-service", "--help"}, "order-service", []string{"--help"}},
		{nil, "", nil},
	}
	for _, tt := range tests {
		mode, rest := splitMode(tt.args)
		assert.Equal(t, tt.wantMode, mode, tt.args)
		assert.Equal(t, tt.wantRest, rest, tt.args)
	}
}
