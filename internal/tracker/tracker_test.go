package tracker

import (
	"testing"

	"github.com/safar/go-checkout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressOutForDelivery(t *testing.T) {
	p, err := ProgressOf(models.DeliveryStatusOutForDelivery)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Index)
	assert.Equal(t, 3, p.LastIndex)
	assert.InDelta(t, 2.0/3.0, p.Fraction, 1e-9)
	assert.False(t, p.Done)

	completed := map[models.DeliveryStatus]bool{}
	for _, s := range p.Steps {
		completed[s.Status] = s.Completed
	}
	assert.True(t, completed[models.DeliveryStatusOrdered])
	assert.True(t, completed[models.DeliveryStatusShipped])
	assert.True(t, completed[models.DeliveryStatusOutForDelivery])
	assert.False(t, completed[models.DeliveryStatusDelivered])
}

func TestProgressEnds(t *testing.T) {
	first, err := ProgressOf(Initial)
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.Fraction)
	assert.Equal(t, "Ordered", first.Steps[0].Label)
	assert.True(t, first.Steps[0].Completed)
	assert.False(t, first.Steps[1].Completed)

	last, err := ProgressOf(Terminal)
	require.NoError(t, err)
	assert.Equal(t, 1.0, last.Fraction)
	assert.True(t, last.Done)
	for _, s := range last.Steps {
		assert.True(t, s.Completed, s.Status)
	}
}

func TestProgressUnknownStatus(t *testing.T) {
	_, err := ProgressOf("cancelled")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		from, to models.DeliveryStatus
		want     bool
	}{
		{models.DeliveryStatusOrdered, models.DeliveryStatusShipped, true},
		{models.DeliveryStatusShipped, models.DeliveryStatusOutForDelivery, true},
		{models.DeliveryStatusOutForDelivery, models.DeliveryStatusDelivered, true},
		{models.DeliveryStatusOrdered, models.DeliveryStatusDelivered, false},
		{models.DeliveryStatusShipped, models.DeliveryStatusOrdered, false},
		{models.DeliveryStatusDelivered, models.DeliveryStatusDelivered, false},
		{"lost", models.DeliveryStatusShipped, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanAdvance(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestNextAtTerminal(t *testing.T) {
	_, ok, err := Next(Terminal)
	require.NoError(t, err)
	assert.False(t, ok)

	next, ok, err := Next(Initial)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.DeliveryStatusShipped, next)

	assert.Len(t, Statuses(), 4)
}
