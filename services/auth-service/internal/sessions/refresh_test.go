package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevokeOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	raw, err := NewToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	id, err := m.Create(ctx, "u-1", raw, time.Now().Add(time.Hour))
	require.NoError(t, err)

	tok, err := m.GetByHash(ctx, HashToken(raw))
	require.NoError(t, err)
	assert.Equal(t, id, tok.ID)
	assert.True(t, tok.Usable(time.Now()))
	assert.False(t, tok.Usable(time.Now().Add(2*time.Hour)))

	ok, err := m.Revoke(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.Revoke(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second revoke must lose")

	tok, err = m.GetByHash(ctx, HashToken(raw))
	require.NoError(t, err)
	assert.False(t, tok.Usable(time.Now()))

	_, err = m.GetByHash(ctx, HashToken("unknown"))
	assert.ErrorIs(t, err, ErrNotFound)
}
