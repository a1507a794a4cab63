package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	data map[string][]byte
}

func newMemPersister() *memPersister {
	return &memPersister{data: map[string][]byte{}}
}

func (m *memPersister) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *memPersister) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *memPersister) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStoreRegistrationLifecycle(t *testing.T) {
	s := NewStore(nil, discardLogger())
	assert.Zero(t, s.RiderID())
	assert.Empty(t, s.RegisteredBus())

	s.SetRegistration(context.Background(), 42, " 742 ")
	assert.Equal(t, int64(42), s.RiderID())
	assert.Equal(t, "742", s.RegisteredBus())

	s.Clear(context.Background())
	assert.Zero(t, s.RiderID())
	assert.Empty(t, s.RegisteredBus())
}

func TestStorePersistsAndRestores(t *testing.T) {
	p := newMemPersister()
	ctx := context.Background()

	first := NewStore(p, discardLogger())
	first.SetRegistration(ctx, 42, "742")

	second := NewStore(p, discardLogger())
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, int64(42), second.RiderID())
	assert.Equal(t, "742", second.RegisteredBus())

	second.Clear(ctx)
	third := NewStore(p, discardLogger())
	require.NoError(t, third.Load(ctx))
	assert.Zero(t, third.RiderID())
}
