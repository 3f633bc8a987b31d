package statesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateInitialAttributes(t *testing.T) {
	s, err := NewState(
		WithDefaultState(map[string]any{"page": 1, "filter": "all"}),
		WithInitialState(map[string]any{"filter": "open"}),
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"page": 1, "filter": "open"}, s.Model().Attributes())
	assert.Equal(t, map[string]any{"page": 1, "filter": "open"}, s.InitialState())
	assert.Nil(t, s.Component())
	assert.False(t, s.IsDestroyed())
}

func TestNewStateEmpty(t *testing.T) {
	s, err := NewState()
	require.NoError(t, err)
	assert.Empty(t, s.Model().Attributes())
	assert.Equal(t, int64(0), s.Version())
}

func TestStateModelFactory(t *testing.T) {
	var got map[string]any
	custom := NewModel(nil)
	s, err := NewState(
		WithDefaultState(map[string]any{"a": 1}),
		WithModelFactory(func(attrs map[string]any) *Model {
			got = attrs
			require.NoError(t, custom.Set(attrs, Silent()))
			return custom
		}),
	)
	require.NoError(t, err)
	assert.Same(t, custom, s.Model())
	assert.Equal(t, map[string]any{"a": 1}, got)
}

func TestStateReset(t *testing.T) {
	s, err := NewState(WithDefaultState(map[string]any{"page": 1, "filter": "all"}))
	require.NoError(t, err)

	require.NoError(t, s.Set(map[string]any{"page": 4, "filter": "done", "extra": true}))
	require.NoError(t, s.Reset(nil))
	assert.Equal(t, map[string]any{"page": 1, "filter": "all", "extra": true}, s.Model().Attributes())

	require.NoError(t, s.SetAttr("page", 9))
	require.NoError(t, s.Reset(map[string]any{"filter": "open"}))
	assert.Equal(t, 1, s.Get("page"))
	assert.Equal(t, "open", s.Get("filter"))
	assert.Equal(t, "all", s.InitialState()["filter"], "a partial reset leaves the initial state alone")
}

func TestStateResetState(t *testing.T) {
	s, err := NewState(
		WithDefaultState(map[string]any{"page": 1}),
		WithInitialState(map[string]any{"filter": "open"}),
	)
	require.NoError(t, err)

	require.NoError(t, s.ResetState(map[string]any{"page": 3}))
	assert.Equal(t, map[string]any{"page": 3}, s.InitialState())
	assert.Equal(t, 3, s.Get("page"))

	require.NoError(t, s.SetAttr("page", 5))
	require.NoError(t, s.Reset(nil))
	assert.Equal(t, 3, s.Get("page"))
}

func TestStateResetTriggersChanges(t *testing.T) {
	s, err := NewState(WithDefaultState(map[string]any{"page": 1}))
	require.NoError(t, err)
	require.NoError(t, s.SetAttr("page", 2))

	log := eventLog(t, s.Model())
	require.NoError(t, s.Reset(nil))
	assert.Equal(t, []string{"change:page=1", "change"}, *log)
}

func TestStateFollowsComponentLifetime(t *testing.T) {
	view := NewComponent()
	s, err := NewState(WithComponent(view))
	require.NoError(t, err)
	assert.Same(t, view, s.Component())

	destroyed := 0
	s.On(EventDestroy, func(...any) error {
		destroyed++
		return nil
	})

	require.NoError(t, view.Destroy())
	assert.True(t, s.IsDestroyed())
	assert.Equal(t, 1, destroyed)
	assert.Nil(t, s.Component())
	assert.ErrorIs(t, s.SetAttr("a", 1), ErrStateDestroyed)
	assert.ErrorIs(t, s.Reset(nil), ErrStateDestroyed)
}

func TestStateDestroyIsIdempotent(t *testing.T) {
	s, err := NewState()
	require.NoError(t, err)

	destroyed := 0
	s.On(EventDestroy, func(...any) error {
		destroyed++
		return nil
	})

	require.NoError(t, s.Destroy())
	require.NoError(t, s.Destroy())
	assert.Equal(t, 1, destroyed)
}

func TestStateDestroyLeavesComponentAlive(t *testing.T) {
	view := NewComponent()
	s, err := NewState(WithComponent(view))
	require.NoError(t, err)

	require.NoError(t, s.Destroy())
	assert.False(t, view.IsDestroyed())
	assert.False(t, view.HasListeners(EventDestroy))
}

func TestStateComponentEvents(t *testing.T) {
	view := NewComponent()
	s, err := NewState(
		WithDefaultState(map[string]any{"selected": ""}),
		WithComponent(view),
		WithComponentEvents(Bindings{Bind("select", "onSelect")}),
	)
	require.NoError(t, err)

	var gotEntity Entity
	s.Define("onSelect", func(entity Entity, value any) error {
		gotEntity = entity
		return s.SetAttr("selected", value)
	})

	require.NoError(t, view.Trigger("select", "row-3"))
	assert.Equal(t, "row-3", s.Get("selected"))
	assert.Nil(t, gotEntity, "components are not entities")
}

func TestStateComponentEventsFromEntity(t *testing.T) {
	source := NewModel(nil)
	s, err := NewState(
		WithComponent(source),
		WithComponentEvents(Bindings{Bind("ping", "onPing")}),
	)
	require.NoError(t, err)

	var got Entity
	s.Define("onPing", func(entity Entity, value any) error {
		got = entity
		return nil
	})
	require.NoError(t, source.Trigger("ping", 1))
	assert.Same(t, source, got)
}

func TestStateSetComponent(t *testing.T) {
	first := NewComponent()
	second := NewComponent()
	s, err := NewState(
		WithComponent(first),
		WithComponentEvents(Bindings{Bind("select", "onSelect")}),
	)
	require.NoError(t, err)

	var got []any
	s.Define("onSelect", func(entity Entity, value any) error {
		got = append(got, value)
		return nil
	})

	s.SetComponent(second)
	require.NoError(t, first.Trigger("select", "old"))
	require.NoError(t, second.Trigger("select", "new"))
	assert.Equal(t, []any{"new"}, got)

	require.NoError(t, first.Destroy())
	assert.False(t, s.IsDestroyed())

	require.NoError(t, second.Destroy())
	assert.True(t, s.IsDestroyed())
}

func TestStateSetComponentNil(t *testing.T) {
	view := NewComponent()
	s, err := NewState(WithComponent(view))
	require.NoError(t, err)

	s.SetComponent(nil)
	require.NoError(t, view.Destroy())
	assert.False(t, s.IsDestroyed())
}

func TestStateSyncEntityEvents(t *testing.T) {
	view := NewComponent()
	s, err := NewState(WithComponent(view))
	require.NoError(t, err)

	model := NewModel(map[string]any{"count": 2})
	var got []any
	s.Define("onCount", func(entity Entity, value any) error {
		got = append(got, value)
		return nil
	})

	session := s.SyncEntityEvents(model, Bindings{Bind("change:count", "onCount")}).When("refresh")
	assert.Same(t, s, session.Target())

	require.NoError(t, model.SetAttr("count", 3))
	require.NoError(t, s.Trigger("refresh"))
	assert.Equal(t, []any{3, 3}, got)

	// destroying the component tears down the state's sessions
	require.NoError(t, view.Destroy())
	require.NoError(t, model.SetAttr("count", 4))
	require.NoError(t, s.Trigger("refresh"))
	assert.Equal(t, []any{3, 3}, got)
	assert.Equal(t, 0, s.Sessions().Len())
}

func TestStateSyncsItsOwnModel(t *testing.T) {
	view := newRecorder("renderPage")
	s, err := NewState(WithDefaultState(map[string]any{"page": 1}))
	require.NoError(t, err)

	session := SyncEntityEvents(view, s.Model(), Bindings{Bind("change:page", "renderPage")})
	require.NoError(t, session.Now())
	require.NoError(t, s.SetAttr("page", 2))
	require.NoError(t, s.Reset(nil))

	assert.Equal(t, []call{
		{"renderPage", s.Model(), 1},
		{"renderPage", s.Model(), 2},
		{"renderPage", s.Model(), 1},
	}, view.calls)
}

func TestComponentDestroy(t *testing.T) {
	view := newRecorder("render")
	model := NewModel(map[string]any{"a": 1})
	SyncEntityEvents(view, model, Bindings{Bind("change:a", "render")}).When("show")

	var order []string
	view.On(EventDestroy, func(args ...any) error {
		order = append(order, "destroy")
		assert.Same(t, view.Component, args[0])
		return nil
	})

	require.NoError(t, view.Destroy())
	assert.True(t, view.IsDestroyed())
	assert.Equal(t, []string{"destroy"}, order)
	assert.Equal(t, 0, view.ListeningCount())
	assert.Equal(t, 0, view.Sessions().Len())

	require.NoError(t, model.SetAttr("a", 2))
	require.NoError(t, view.Trigger("show"))
	assert.Empty(t, view.calls)

	require.NoError(t, view.Destroy())
	assert.Equal(t, []string{"destroy"}, order)
}
