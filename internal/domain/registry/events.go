package registry

import (
	"encoding/json"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Registry events never carry plaintext personal data: email scopes store a
// digest of the address as the key, so no sealing is needed here.

func init() {
	shared.RegisterDecoder(shared.EventRegistryRegistered, func(payload []byte) (shared.Event, error) {
		event := &RegisteredEvent{}
		if err := json.Unmarshal(payload, event); err != nil {
			return nil, err
		}
		return event, nil
	})
	shared.RegisterDecoder(shared.EventRegistryReleased, func(payload []byte) (shared.Event, error) {
		event := &ReleasedEvent{}
		if err := json.Unmarshal(payload, event); err != nil {
			return nil, err
		}
		return event, nil
	})
}

// RegisteredEvent records that an owner claimed a key in this scope.
type RegisteredEvent struct {
	shared.BaseEvent
	Key     string `json:"key"`
	OwnerID string `json:"owner_id"`
}

// NewRegisteredEvent creates a new RegisteredEvent.
func NewRegisteredEvent(streamID, key, ownerID string, requestID shared.RequestID, occurredAt time.Time) *RegisteredEvent {
	return &RegisteredEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventRegistryRegistered, streamID, "", requestID.String(), occurredAt),
		Key:       key,
		OwnerID:   ownerID,
	}
}

// ReleasedEvent records that the holder freed a key for reuse.
type ReleasedEvent struct {
	shared.BaseEvent
	Key     string `json:"key"`
	OwnerID string `json:"owner_id"`
}

// NewReleasedEvent creates a new ReleasedEvent.
func NewReleasedEvent(streamID, key, ownerID string, requestID shared.RequestID, occurredAt time.Time) *ReleasedEvent {
	return &ReleasedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventRegistryReleased, streamID, "", requestID.String(), occurredAt),
		Key:       key,
		OwnerID:   ownerID,
	}
}
