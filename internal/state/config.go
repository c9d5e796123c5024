package state

import "github.com/google/uuid"

// ProtocolConfig holds the process-wide mutable settings. Mutations run
// under the same serialized operation discipline as the record stores.
type ProtocolConfig struct {
	Owner                 uuid.UUID
	ProtocolFeeBps        int64
	RebalanceThresholdBps int64
	RebalanceInterval     int64
}

// Initialization defaults: fee 100bp, threshold 500bp.
const (
	DefaultProtocolFeeBps        int64 = 100
	DefaultRebalanceThresholdBps int64 = 500
)

// NewProtocolConfig returns the defined initial configuration.
func NewProtocolConfig(owner uuid.UUID, rebalanceInterval int64) *ProtocolConfig {
	return &ProtocolConfig{
		Owner:                 owner,
		ProtocolFeeBps:        DefaultProtocolFeeBps,
		RebalanceThresholdBps: DefaultRebalanceThresholdBps,
		RebalanceInterval:     rebalanceInterval,
	}
}
