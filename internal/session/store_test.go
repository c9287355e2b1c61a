package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/fake"
)

func TestTableRemoveIsIdentityChecked(t *testing.T) {
	table := NewTable(3)
	mux := fake.NewMultiplexer()
	old := NewConnection(fake.NewConn(5), "a", mux, Options{Table: table})
	fresh := NewConnection(fake.NewConn(5), "b", mux, Options{Table: table})

	assert.Nil(t, table.Insert(old))
	assert.Same(t, old, table.Insert(fresh), "recycled fd replaces the stale entry")
	assert.Equal(t, 1, table.Len())

	assert.False(t, table.Remove(5, old))
	got, ok := table.Get(5)
	assert.True(t, ok)
	assert.Same(t, fresh, got)

	assert.True(t, table.Remove(5, fresh))
	assert.Zero(t, table.Len())
}

func TestTableCloseAll(t *testing.T) {
	table := NewTable(0)
	mux := fake.NewMultiplexer()
	for fd := 10; fd < 20; fd++ {
		c := NewConnection(fake.NewConn(fd), "p", mux, Options{Table: table})
		assert.NoError(t, c.Start())
	}
	assert.Equal(t, 10, table.Len())

	assert.Equal(t, 10, table.CloseAll(api.ErrExecutorClosed))
	assert.Zero(t, table.Len())
	assert.Zero(t, table.CloseAll(nil))
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.EqualValues(t, 1, nextPowerOfTwo(1))
	assert.EqualValues(t, 4, nextPowerOfTwo(3))
	assert.EqualValues(t, 16, nextPowerOfTwo(16))
}
