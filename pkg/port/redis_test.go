package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHandler builds a handler over a fresh registry.
func newTestHandler(t *testing.T) *redisHandler {
	t.Helper()
	handler, err := newRedisHandler(NewRegistry(2))
	require.NoError(t, err)
	return handler
}

// run feeds a command through the handler the same way the redcon callback does.
func run(handler *redisHandler, command string, args ...string) redisOutput {
	return handler.handle(redisCommand{command: command, args: args})
}

func assertOk(t *testing.T, output redisOutput) {
	t.Helper()
	require.Nil(t, output.err, "unexpected error reply")
	assert.Equal(t, RedisOk, output.writeString)
}

func assertErrorContains(t *testing.T, output redisOutput, want string) {
	t.Helper()
	require.NotNil(t, output.err, "expected an error reply")
	assert.Contains(t, *output.err, want)
}

func TestRedisHandler_Basics(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("ping", func(t *testing.T) {
		assert.Equal(t, "PONG", run(handler, "PING").writeString)
	})
	t.Run("quit closes the connection", func(t *testing.T) {
		output := run(handler, "QUIT")
		assert.True(t, output.closeConnection)
	})
	t.Run("unknown command", func(t *testing.T) {
		assertErrorContains(t, run(handler, "FLY"), "unknown command")
	})
	t.Run("lowercase commands are accepted", func(t *testing.T) {
		assert.Equal(t, "PONG", run(handler, "ping").writeString)
	})
}

func TestRedisHandler_SetGetDel(t *testing.T) {
	handler := newTestHandler(t)

	assertOk(t, run(handler, "SET", "colors", "r", "red"))
	assertOk(t, run(handler, "SET", "colors", "g", "green"))

	t.Run("get existing key", func(t *testing.T) {
		output := run(handler, "GET", "colors", "r")
		require.NotNil(t, output.writeBulk)
		assert.Equal(t, "red", *output.writeBulk)
	})
	t.Run("get missing key writes nil", func(t *testing.T) {
		assert.True(t, run(handler, "GET", "colors", "missing").writeNil)
	})
	t.Run("get from never written map writes nil", func(t *testing.T) {
		assert.True(t, run(handler, "GET", "nothing", "k").writeNil)
	})
	t.Run("exists", func(t *testing.T) {
		assert.Equal(t, 1, *run(handler, "EXISTS", "colors", "r").writeInt)
		assert.Equal(t, 0, *run(handler, "EXISTS", "colors", "missing").writeInt)
	})
	t.Run("len", func(t *testing.T) {
		assert.Equal(t, 2, *run(handler, "LEN", "colors").writeInt)
		assert.Equal(t, 0, *run(handler, "LEN", "nothing").writeInt)
	})
	t.Run("del counts only removed keys and ignores duplicates", func(t *testing.T) {
		assertOk(t, run(handler, "SET", "colors", "b", "blue"))
		output := run(handler, "DEL", "colors", "b", "b", "missing")
		assert.Equal(t, 1, *output.writeInt)
	})
	t.Run("wrong arity", func(t *testing.T) {
		assertErrorContains(t, run(handler, "SET", "colors", "r"), "wrong number of arguments")
		assertErrorContains(t, run(handler, "GET", "colors"), "wrong number of arguments")
	})
}

func TestRedisHandler_PositionalCommands(t *testing.T) {
	handler := newTestHandler(t)
	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}} {
		assertOk(t, run(handler, "SET", "m", kv[0], kv[1]))
	}

	t.Run("first and last", func(t *testing.T) {
		assert.Equal(t, "a", *run(handler, "FIRST", "m").writeBulk)
		assert.Equal(t, "c", *run(handler, "LAST", "m").writeBulk)
	})
	t.Run("first on empty map", func(t *testing.T) {
		assertErrorContains(t, run(handler, "FIRST", "nothing"), "empty map")
	})
	t.Run("next and prev", func(t *testing.T) {
		assert.Equal(t, []string{"b", "2"}, run(handler, "NEXT", "m", "a").writeBulks)
		assert.Equal(t, []string{"b", "2"}, run(handler, "PREV", "m", "c").writeBulks)
	})
	t.Run("next past the boundary writes nil", func(t *testing.T) {
		assert.True(t, run(handler, "NEXT", "m", "c").writeNil)
		assert.True(t, run(handler, "PREV", "m", "a").writeNil)
	})
	t.Run("next of missing key", func(t *testing.T) {
		assertErrorContains(t, run(handler, "NEXT", "m", "zz"), "no such key")
	})

	t.Run("move", func(t *testing.T) {
		assertOk(t, run(handler, "MOVE", "m", "c", "a", "after"))
		assert.Equal(t, []string{"a", "c", "b"}, run(handler, "KEYS", "m").writeBulks)
		assertOk(t, run(handler, "MOVE", "m", "c", "b", "before"))
		assert.Equal(t, []string{"a", "c", "b"}, run(handler, "KEYS", "m").writeBulks)
	})
	t.Run("move with a bad direction", func(t *testing.T) {
		assertErrorContains(t, run(handler, "MOVE", "m", "c", "a", "sideways"), "unknown direction")
	})
	t.Run("move a missing key", func(t *testing.T) {
		assertErrorContains(t, run(handler, "MOVE", "m", "zz", "a", "after"), "no such key")
	})

	t.Run("insert", func(t *testing.T) {
		assertOk(t, run(handler, "INSERT", "m", "x", "9", "a", "after"))
		assert.Equal(t, []string{"a", "x", "c", "b"}, run(handler, "KEYS", "m").writeBulks)
	})
	t.Run("insert with existing key only updates the value", func(t *testing.T) {
		assertOk(t, run(handler, "INSERT", "m", "x", "10", "b", "before"))
		assert.Equal(t, []string{"a", "x", "c", "b"}, run(handler, "KEYS", "m").writeBulks)
		assert.Equal(t, "10", *run(handler, "GET", "m", "x").writeBulk)
	})
	t.Run("insert with missing anchor", func(t *testing.T) {
		assertErrorContains(t, run(handler, "INSERT", "m", "y", "9", "zz", "after"), "no such key")
	})

	t.Run("entries", func(t *testing.T) {
		assert.Equal(t, []string{"a", "1", "x", "10", "c", "3", "b", "2"},
			run(handler, "ENTRIES", "m").writeBulks)
	})
	t.Run("debug dump reports root boundaries", func(t *testing.T) {
		output := run(handler, "DEBUG", "m")
		require.NotNil(t, output.writeBulk)
		assert.Contains(t, *output.writeBulk, "key:a, prev:root, next:x")
		assert.Contains(t, *output.writeBulk, "key:b, prev:c, next:root")
	})
}

func TestRedisHandler_MapsAndDrop(t *testing.T) {
	handler := newTestHandler(t)
	assertOk(t, run(handler, "SET", "beta", "k", "v"))
	assertOk(t, run(handler, "SET", "alpha", "k", "v"))

	assert.Equal(t, []string{"alpha", "beta"}, run(handler, "MAPS").writeBulks)
	assert.Equal(t, 1, *run(handler, "DROP", "beta").writeInt)
	assert.Equal(t, 0, *run(handler, "DROP", "beta").writeInt)
	assert.Equal(t, []string{"alpha"}, run(handler, "MAPS").writeBulks)
}
