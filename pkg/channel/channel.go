package channel

import (
	"context"

	"chatrouter/pkg/bus"
)

// Handler accepts one inbound delivery from a channel. It should return
// quickly; routing happens elsewhere.
type Handler func(context.Context, bus.Delivery) error

// Adapter bridges one external transport (for example Telegram) into the router.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
