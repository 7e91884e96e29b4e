package subscriber

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"KievAlerts/internal/store"
)

type mockStore struct {
	store.NoopStore
	mock.Mock
}

func (m *mockStore) LoadSubscribers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockStore) AddSubscriber(ctx context.Context, chatID string) error {
	return m.Called(ctx, chatID).Error(0)
}

func TestRegistry_ListIncludesAdminFirst(t *testing.T) {
	ctx := context.Background()
	s := &mockStore{}
	s.On("LoadSubscribers", ctx).Return([]string{"300", "200", "1"}, nil)

	r := NewRegistry(s, "1", nil)
	ids, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "200", "300"}, ids)
	assert.Equal(t, 3, r.Count())
	s.AssertExpectations(t)
}

func TestRegistry_AddPersistsOnce(t *testing.T) {
	ctx := context.Background()
	s := &mockStore{}
	s.On("AddSubscriber", ctx, "42").Return(nil).Once()

	r := NewRegistry(s, "1", nil)
	added, err := r.Add(ctx, "42")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.Add(ctx, "42")
	require.NoError(t, err)
	assert.False(t, added)

	// admin is known from the start
	added, err = r.Add(ctx, "1")
	require.NoError(t, err)
	assert.False(t, added)

	s.AssertExpectations(t)
}

func TestRegistry_AddStoreError(t *testing.T) {
	ctx := context.Background()
	s := &mockStore{}
	s.On("AddSubscriber", ctx, "42").Return(errors.New("disk full"))

	r := NewRegistry(s, "1", nil)
	added, err := r.Add(ctx, "42")
	require.Error(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_ListFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	s := &mockStore{}
	s.On("AddSubscriber", ctx, "9").Return(nil)
	s.On("LoadSubscribers", ctx).Return(nil, errors.New("connection refused"))

	r := NewRegistry(s, "1", nil)
	_, err := r.Add(ctx, "9")
	require.NoError(t, err)

	ids, err := r.List(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"1", "9"}, ids)
}

func TestRegistry_IsAdmin(t *testing.T) {
	r := NewRegistry(store.NewNoopStore(), "1", nil)
	assert.True(t, r.IsAdmin("1"))
	assert.False(t, r.IsAdmin("2"))

	noAdmin := NewRegistry(store.NewNoopStore(), "", nil)
	assert.False(t, noAdmin.IsAdmin(""))
	assert.Equal(t, 0, noAdmin.Count())
}
