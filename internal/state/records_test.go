package state

import (
	"testing"

	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecords(t *testing.T) {
	ds := &core.Dataset{LogicalID: core.DatasetLogicalID{Name: "db.s.t", Platform: core.PlatformSnowflake}}
	view := &core.VirtualView{LogicalID: core.VirtualViewLogicalID{Name: "proj.m", Type: core.VirtualViewDbtModel}}

	recs, err := Records([]core.MetadataChangeEvent{{Dataset: ds}, {VirtualView: view}})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, identity.Of(ds.LogicalID), recs[0].ID)
	assert.Equal(t, core.EntityTypeDataset, recs[0].Type)
	assert.Equal(t, "db.s.t", recs[0].Name)
	assert.Equal(t, core.EntityTypeVirtualView, recs[1].Type)

	ev, err := Event(recs[1])
	require.NoError(t, err)
	require.NotNil(t, ev.VirtualView)
	assert.Equal(t, view.LogicalID, ev.VirtualView.LogicalID)

	_, err = Records([]core.MetadataChangeEvent{{}})
	assert.Error(t, err)
}
