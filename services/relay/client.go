package relay

import (
	"context"

	"github.com/AleutianAI/KyvexGateway/services/gateway/datatypes"
)

// RelayClient defines the standard interface for a stream-aggregating
// upstream backend.
//
// Relay never returns a Go error: every failure mode (transport,
// protocol, timeout) is encoded as a failure-shaped ChatResult so the
// HTTP layer always has exactly one well-formed result to serialize.
type RelayClient interface {
	Relay(ctx context.Context, req datatypes.ChatRequest) *datatypes.ChatResult
}
