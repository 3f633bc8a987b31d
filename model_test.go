package statesync

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog collects event names from an observable, with the value for
// attribute changes
func eventLog(t *testing.T, obs Observable) *[]string {
	t.Helper()
	var log []string
	obs.On(EventAll, func(args ...any) error {
		entry := args[0].(string)
		if strings.HasPrefix(entry, EventChange+":") {
			entry = fmt.Sprintf("%s=%v", entry, args[2])
		}
		log = append(log, entry)
		return nil
	})
	return &log
}

func TestModelGetSet(t *testing.T) {
	attrs := map[string]any{"a": 1}
	m := NewModel(attrs)
	attrs["a"] = 2

	assert.Equal(t, 1, m.Get("a"), "constructor copies attributes")
	assert.True(t, m.Has("a"))
	assert.False(t, m.Has("b"))
	assert.Nil(t, m.Get("b"))
	assert.Equal(t, KindRecord, m.Kind())
	assert.NotEmpty(t, m.CID())
	assert.NotEqual(t, m.CID(), NewModel(nil).CID())
}

func TestModelSetEvents(t *testing.T) {
	m := NewModel(map[string]any{"a": 1, "b": 2})
	log := eventLog(t, m)

	require.NoError(t, m.Set(map[string]any{"c": 3, "a": 5, "b": 2}))
	assert.Equal(t, []string{"change:a=5", "change:c=3", "change"}, *log)
}

func TestModelSetUnchangedIsQuiet(t *testing.T) {
	m := NewModel(map[string]any{"list": []string{"x"}})
	log := eventLog(t, m)

	require.NoError(t, m.SetAttr("list", []string{"x"}))
	assert.Empty(t, *log)
}

func TestModelSilent(t *testing.T) {
	m := NewModel(nil)
	log := eventLog(t, m)

	require.NoError(t, m.SetAttr("a", 1, Silent()))
	assert.Equal(t, 1, m.Get("a"))
	assert.Empty(t, *log)
}

func TestModelUnsetClear(t *testing.T) {
	m := NewModel(map[string]any{"a": 1, "b": 2})
	log := eventLog(t, m)

	require.NoError(t, m.Unset("a"))
	assert.Equal(t, []string{"change:a=<nil>", "change"}, *log)
	assert.Equal(t, map[string]any{"b": 2}, m.Attributes())

	*log = nil
	require.NoError(t, m.Unset("missing"))
	assert.Empty(t, *log)

	require.NoError(t, m.Clear())
	assert.Equal(t, []string{"change:b=<nil>", "change"}, *log)
	assert.Empty(t, m.Attributes())
}

func TestModelAttributesIsACopy(t *testing.T) {
	m := NewModel(map[string]any{"a": 1})
	attrs := m.Attributes()
	attrs["a"] = 2
	assert.Equal(t, 1, m.Get("a"))
}

func TestCollection(t *testing.T) {
	a := NewModel(map[string]any{"n": 1})
	b := NewModel(map[string]any{"n": 2})
	c := NewCollection(a)
	log := eventLog(t, c)

	assert.Equal(t, KindCollection, c.Kind())
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Add(b, a))
	assert.Equal(t, []*Model{a, b}, c.Models())
	assert.Same(t, b, c.At(1))
	assert.Nil(t, c.At(2))
	assert.Nil(t, c.At(-1))

	found, ok := c.Get(b.CID())
	require.True(t, ok)
	assert.Same(t, b, found)

	require.NoError(t, b.SetAttr("n", 3))
	require.NoError(t, c.Remove(b))
	require.NoError(t, b.SetAttr("n", 4))

	assert.Equal(t, []string{"add", "change:n=3", "change", "remove"}, *log)
	assert.Equal(t, 1, c.Len())
	_, ok = c.Get(b.CID())
	assert.False(t, ok)
}

func TestCollectionReset(t *testing.T) {
	a := NewModel(nil)
	b := NewModel(nil)
	c := NewCollection(a)
	log := eventLog(t, c)

	require.NoError(t, c.Reset(b))
	assert.Equal(t, []*Model{b}, c.Models())
	assert.Equal(t, []string{"reset"}, *log)

	require.NoError(t, a.SetAttr("x", 1))
	assert.Equal(t, []string{"reset"}, *log, "old members are no longer proxied")
}

func TestCollectionZeroValue(t *testing.T) {
	var c Collection
	m := NewModel(nil)
	require.NoError(t, c.Add(m))
	assert.Equal(t, 1, c.Len())
}
