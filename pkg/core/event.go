package core

// MetadataChangeEvent is the generic record handed to output sinks.
// Exactly one entity field is set.
type MetadataChangeEvent struct {
	Dataset     *Dataset     `json:"dataset,omitempty"`
	VirtualView *VirtualView `json:"virtualView,omitempty"`
	Metric      *Metric      `json:"metric,omitempty"`
}

// EntityType returns the type of the entity carried by the event.
func (e MetadataChangeEvent) EntityType() EntityType {
	switch {
	case e.Dataset != nil:
		return EntityTypeDataset
	case e.VirtualView != nil:
		return EntityTypeVirtualView
	case e.Metric != nil:
		return EntityTypeMetric
	default:
		return ""
	}
}
