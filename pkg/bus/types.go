package bus

import (
	"time"

	"chatrouter/pkg/platform"
)

// Delivery is one inbound update together with the capability to answer it
// on the channel it came from.
type Delivery struct {
	Channel    string          `json:"channel"`
	Update     platform.Update `json:"update"`
	Sender     platform.Sender `json:"-"`
	ReceivedAt time.Time       `json:"received_at"`
}
