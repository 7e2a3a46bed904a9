package state

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
)

// Records converts events to storable records keyed by entity ID.
func Records(events []core.MetadataChangeEvent) ([]*core.EntityRecord, error) {
	out := make([]*core.EntityRecord, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s event: %w", ev.EntityType(), err)
		}
		rec := &core.EntityRecord{Type: ev.EntityType(), Payload: payload}
		switch {
		case ev.Dataset != nil:
			rec.ID, rec.Name = identity.Of(ev.Dataset.LogicalID), ev.Dataset.LogicalID.Name
		case ev.VirtualView != nil:
			rec.ID, rec.Name = identity.Of(ev.VirtualView.LogicalID), ev.VirtualView.LogicalID.Name
		case ev.Metric != nil:
			rec.ID, rec.Name = identity.Of(ev.Metric.LogicalID), ev.Metric.LogicalID.Name
		default:
			return nil, fmt.Errorf("empty metadata change event")
		}
		out = append(out, rec)
	}
	return out, nil
}

// Event decodes the payload of a record.
func Event(rec *core.EntityRecord) (core.MetadataChangeEvent, error) {
	var ev core.MetadataChangeEvent
	if err := json.Unmarshal(rec.Payload, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode entity %s: %w", rec.ID, err)
	}
	return ev, nil
}
