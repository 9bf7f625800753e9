package core

import "github.com/shopspring/decimal"

// WaitTime bounds a single request, in seconds.
const WaitTime = 15

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type OrderParams struct {
	Port       int
	ConfigPath string
}

type OrderLimits struct {
	MaxItems int
	MaxTotal decimal.Decimal
}

func DefaultLimits() OrderLimits {
	return OrderLimits{MaxItems: 100, MaxTotal: decimal.NewFromInt(10000)}
}
