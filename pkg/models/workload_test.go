package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkloadKeyRoundTrip(t *testing.T) {
	id := NewWorkloadIdentity("shop", "cart")
	assert.Equal(t, "shop:cart", id.Key())
	assert.Equal(t, "shop/cart", id.String())

	parsed, err := ParseWorkloadKey(id.Key())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseWorkloadKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "shop", "shop:", ":cart"} {
		_, err := ParseWorkloadKey(key)
		assert.Error(t, err, key)
	}
}

func TestWorkloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      WorkloadIdentity
		wantErr bool
	}{
		{"valid", NewWorkloadIdentity("shop", "cart-api"), false},
		{"dotted deployment", NewWorkloadIdentity("shop", "cart.v2"), false},
		{"uppercase namespace", NewWorkloadIdentity("Shop", "cart"), true},
		{"empty deployment", NewWorkloadIdentity("shop", ""), true},
		{"colon in deployment", NewWorkloadIdentity("shop", "a:b"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNamespacedName(t *testing.T) {
	nn := NewWorkloadIdentity("shop", "cart").NamespacedName()
	assert.Equal(t, "shop/cart", nn.String())
}

func TestIdleRatioAndLookup(t *testing.T) {
	m := AllocationMetrics{TotalCost: 4, IdleCost: 1}
	assert.InDelta(t, 0.25, m.IdleRatio(), 1e-9)

	empty := AllocationMetrics{}
	assert.Zero(t, empty.IdleRatio())

	snap := &MetricsSnapshot{Namespaces: map[string]AllocationMetrics{"shop": m}}
	got, ok := snap.Lookup("shop")
	assert.True(t, ok)
	assert.Equal(t, m, got)

	_, ok = snap.Lookup("web")
	assert.False(t, ok)

	var nilSnap *MetricsSnapshot
	_, ok = nilSnap.Lookup("shop")
	assert.False(t, ok)
}

func TestWorkloadValidateReturnsValidationError(t *testing.T) {
	err := NewWorkloadIdentity("shop", "Cart").Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "deployment name", ve.Field)
	assert.Equal(t, "Cart", ve.Value)
}
