package statesync

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// Every handler call of the scenario is one line; each step starts with a header.
func TestDispatchTraceGolden(t *testing.T) {
	var trace strings.Builder
	view := NewComponent()
	for _, name := range []string{"doA", "doB"} {
		view.Define(name, func(entity Entity, value any) error {
			fmt.Fprintf(&trace, "%s %s %v\n", name, entity.Kind(), value)
			return nil
		})
	}

	model := NewModel(map[string]any{"foo": 1, "bar": 2})
	bindings := Bindings{
		Bind("change:foo change:bar", "doA doB"),
		Bind("reset", "doA"),
		Bind("change", "doB"),
	}
	session := SyncEntityEvents(view, model, bindings).When("render")

	trace.WriteString("# now\n")
	require.NoError(t, session.Now())

	trace.WriteString("# set foo=3\n")
	require.NoError(t, model.SetAttr("foo", 3))

	trace.WriteString("# render\n")
	require.NoError(t, view.Trigger("render"))

	trace.WriteString("# stop\n")
	StopSyncingEntityEvents(view, model, bindings)
	require.NoError(t, view.Trigger("render"))
	require.NoError(t, model.SetAttr("bar", 4))

	g := goldie.New(t)
	g.Assert(t, "dispatch_trace", []byte(trace.String()))
}
