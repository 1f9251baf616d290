package replica

import (
	"context"

	"github.com/roach88/tandem/internal/ir"
)

// Channel is the outbound publish/subscribe collaborator. A State publishes
// every message it authors; subscribers, typically the peer replica through
// some transport, receive it.
//
// Implementations must deliver to each subscriber in publish order, exactly
// once. The core verifies only the ordering, via the causal check.
type Channel interface {
	Publish(ctx context.Context, msg ir.Message) error
	Subscribe(handler func(ir.Message)) (Subscription, error)
}

// Subscription is the handle returned by Channel.Subscribe.
type Subscription interface {
	Unsubscribe()
}

// Receiver is anything that accepts peer messages: a State or a Loop.
type Receiver interface {
	Receive(msg ir.Message)
}

// Connect subscribes to to from's outbound channel and returns the
// subscription.
func Connect(from Channel, to Receiver) (Subscription, error) {
	return from.Subscribe(to.Receive)
}

// WireChannel delivers raw wire payloads and leaves decoding to the
// receiver, so a malformed payload reaches the replica as an error instead
// of being dropped by the transport.
type WireChannel interface {
	SubscribeWire(handler func(data []byte)) (Subscription, error)
}

// WireReceiver accepts undecoded peer payloads. Loop implements it.
type WireReceiver interface {
	ReceiveWire(data []byte)
}

// ConnectWire subscribes to to from's raw payloads.
func ConnectWire(from WireChannel, to WireReceiver) (Subscription, error) {
	return from.SubscribeWire(to.ReceiveWire)
}
