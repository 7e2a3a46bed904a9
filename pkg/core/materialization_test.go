package core_test

import (
	"testing"

	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestParseMaterialization(t *testing.T) {
	tests := []struct {
		in   string
		want core.MaterializationType
	}{
		{"table", core.MaterializationTable},
		{"VIEW", core.MaterializationView},
		{" incremental ", core.MaterializationIncremental},
		{"ephemeral", core.MaterializationEphemeral},
		{"snapshot", core.MaterializationSnapshot},
		{"materialized_view", core.MaterializationOther},
		{"", core.MaterializationOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, core.ParseMaterialization(tt.in))
		})
	}
}

func TestMaterializationPersisted(t *testing.T) {
	assert.True(t, core.MaterializationTable.Persisted())
	assert.True(t, core.MaterializationIncremental.Persisted())
	assert.False(t, core.MaterializationEphemeral.Persisted())
	assert.False(t, core.MaterializationOther.Persisted())
}
