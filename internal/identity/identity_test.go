package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequire(t *testing.T) {
	_, err := Require(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = Require(WithIdentity(context.Background(), Identity{}))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	id, err := Require(WithIdentity(context.Background(), Identity{UserID: 7}))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.UserID)
}
