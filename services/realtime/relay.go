package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// maxRelayAge bounds how old a relayed event may be. Older events are
// replays after a reconnect and are not worth a client refresh.
const maxRelayAge = time.Minute

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode room event: %w", err)
	}
	return payload, nil
}

// relay decodes a payload received from a broker and broadcasts it locally.
func relay(hub *Hub, payload []byte, now time.Time) (int, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return 0, fmt.Errorf("failed to decode room event: %w", err)
	}
	if _, err := ParseRoom(event.Room); err != nil {
		return 0, err
	}
	if !event.Timestamp.IsZero() && now.Sub(event.Timestamp) > maxRelayAge {
		return 0, nil
	}
	return hub.Broadcast(event), nil
}
