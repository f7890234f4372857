package directory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwoot/ticketsync/internal/api"
)

type fakeSource struct {
	calls atomic.Int32
	techs []api.Technician
	err   error
}

func (f *fakeSource) ListTechnicians(context.Context) ([]api.Technician, error) {
	f.calls.Add(1)
	return f.techs, f.err
}

func staff() []api.Technician {
	return []api.Technician{
		{ID: 1, Name: "Ana Lopez", Email: "ana@example.com"},
		{ID: 2, Name: "Andre Silva"},
		{ID: 3, Name: "Bruno Costa"},
	}
}

func TestTechniciansAreCached(t *testing.T) {
	src := &fakeSource{techs: staff()}
	d := New(src, time.Minute)

	for range 3 {
		techs, err := d.Technicians(context.Background())
		require.NoError(t, err)
		assert.Len(t, techs, 3)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	d.Invalidate()
	_, err := d.Technicians(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestTechniciansExpire(t *testing.T) {
	src := &fakeSource{techs: staff()}
	d := New(src, 20*time.Millisecond)
	_, err := d.Technicians(context.Background())
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = d.Technicians(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestIsOperatorUsesLastLoadedList(t *testing.T) {
	src := &fakeSource{techs: staff()}
	d := New(src, time.Minute)
	assert.False(t, d.IsOperator(1), "nothing loaded yet")

	require.NoError(t, d.Refresh(context.Background()))
	assert.True(t, d.IsOperator(1))
	assert.False(t, d.IsOperator(999))
	name, ok := d.Name(3)
	assert.True(t, ok)
	assert.Equal(t, "Bruno Costa", name)

	src.err = errors.New("offline")
	d.Invalidate()
	assert.Error(t, d.Refresh(context.Background()))
	assert.True(t, d.IsOperator(1), "failed reload keeps the previous set")
}

func TestResolve(t *testing.T) {
	d := New(&fakeSource{techs: staff()}, time.Minute)
	ctx := context.Background()

	id, err := d.Resolve(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	id, err = d.Resolve(ctx, "bruno")
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	id, err = d.Resolve(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = d.Resolve(ctx, "andre silva")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	_, err = d.Resolve(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = d.Resolve(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	ids, err := d.ResolveAll(ctx, []string{"bruno", "7"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, ids)
}

func TestMatchAmbiguous(t *testing.T) {
	techs := []api.Technician{{ID: 1, Name: "Sam One"}, {ID: 2, Name: "Sam Two"}}
	_, err := match("sam", techs)
	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Len(t, amb.Matches, 2)
	assert.Contains(t, amb.Error(), "Sam One")
}
