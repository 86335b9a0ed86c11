package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	_, err := m.Put(ctx, "b.json", strings.NewReader("b"))
	require.NoError(t, err)
	_, err = m.Put(ctx, "a.json", strings.NewReader("a"))
	require.NoError(t, err)

	names, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, names)

	data, err := m.Get(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	_, err = m.Get(ctx, "c.json")
	assert.True(t, IsNotFound(err))

	assert.Equal(t, MockCalls{Put: 2, Get: 2, List: 1}, m.Calls())
}

func TestMockStorePutErr(t *testing.T) {
	m := NewMockStore()
	m.PutErr = errors.New("disk full")
	_, err := m.Put(context.Background(), "a.json", strings.NewReader("a"))
	assert.EqualError(t, err, "disk full")
}
