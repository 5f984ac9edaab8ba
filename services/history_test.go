package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-display/models"
)

func TestMemoryHistory_ArchiveGetList(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()

	list, err := h.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for i := 1; i <= 3; i++ {
		o := &models.Order{OrderID: fmt.Sprintf("ORD-%d", i), Items: []models.LineItem{{ID: "A", Quantity: i}}}
		require.NoError(t, h.Archive(ctx, o))
	}

	list, err = h.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, o := range list {
		assert.Equal(t, fmt.Sprintf("ORD-%d", i+1), o.OrderID, "archival order preserved")
	}

	rec, err := h.Get(ctx, "ORD-2")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Items[0].Quantity)

	_, err = h.Get(ctx, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryHistory_RecordsAreImmutable(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()
	o := &models.Order{OrderID: "ORD-1", Items: []models.LineItem{{ID: "A", Quantity: 1}}, Total: 5}
	require.NoError(t, h.Archive(ctx, o))

	o.Items[0].Quantity = 42
	o.Total = 0
	rec, _ := h.Get(ctx, "ORD-1")
	assert.Equal(t, 1, rec.Items[0].Quantity, "archive keeps its own copy")

	rec.Total = 999
	again, _ := h.Get(ctx, "ORD-1")
	assert.Equal(t, 5.0, again.Total, "readers get copies")

	require.NoError(t, h.Archive(ctx, &models.Order{OrderID: "ORD-1", Total: 1}))
	again, _ = h.Get(ctx, "ORD-1")
	assert.Equal(t, 5.0, again.Total, "re-archiving an id does not overwrite")
	list, _ := h.List(ctx)
	assert.Len(t, list, 1)
}

func TestMemoryHistory_NilIgnored(t *testing.T) {
	h := NewMemoryHistory()
	require.NoError(t, h.Archive(context.Background(), nil))
	list, _ := h.List(context.Background())
	assert.Empty(t, list)
}
