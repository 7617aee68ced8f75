package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerCache(t *testing.T) {
	c, err := NewBadgerCache(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete("k"))
	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBadgerCache_InMemoryJSON(t *testing.T) {
	c, err := NewBadgerCache("")
	require.NoError(t, err)
	defer c.Close()

	type payload struct {
		Topic string   `json:"topic"`
		Tags  []string `json:"tags"`
	}
	key := Key("extraction", "model", "some text")
	require.NoError(t, SetJSON(c, key, payload{Topic: "cats", Tags: []string{"pets"}}, time.Hour))

	var out payload
	require.NoError(t, GetJSON(c, key, &out))
	assert.Equal(t, "cats", out.Topic)
	assert.Equal(t, []string{"pets"}, out.Tags)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("ns", "a", "b"), Key("ns", "a", "b"))
	assert.NotEqual(t, Key("ns", "ab", ""), Key("ns", "a", "b"))
	assert.NotEqual(t, Key("x", "a"), Key("y", "a"))
}
