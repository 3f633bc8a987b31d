package statesync

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Binding maps one or more whitespace-separated events to one or more
// whitespace-separated handler names, or to a single function.
//
//	statesync.Bind("change:foo change:bar", "doA doB")
type Binding struct {
	Events   string
	Handlers string
	Func     HandlerFunc

	// id is set by BindFunc. Closures built from one literal share a code
	// pointer, so the pointer alone cannot tell two of them apart.
	id string
}

// Bindings is an ordered binding table. Entries are evaluated in slice order.
type Bindings []Binding

// Bind declares handlers, looked up by name on the target when they run
func Bind(events, handlers string) Binding {
	return Binding{Events: events, Handlers: handlers}
}

// BindFunc declares a function handler. Each call yields a distinct
// binding, even for the same fn.
func BindFunc(events string, fn HandlerFunc) Binding {
	return Binding{Events: events, Func: fn, id: uuid.NewString()}
}

// EventNames returns the declared events in order
func (b Binding) EventNames() []string {
	return tokens(b.Events)
}

// HandlerNames returns the declared handler names in order. It is empty for
// function bindings.
func (b Binding) HandlerNames() []string {
	if b.Func != nil {
		return nil
	}
	return tokens(b.Handlers)
}

// key identifies the binding's handlers for listener bookkeeping
func (b Binding) key() string {
	if b.Func != nil {
		if b.id != "" {
			return "func:" + b.id
		}
		return fmt.Sprintf("func:%x", reflect.ValueOf(b.Func).Pointer())
	}
	return "handlers:" + strings.Join(b.HandlerNames(), " ")
}

// tokens splits s on runs of whitespace
func tokens(s string) []string {
	return strings.Fields(s)
}

// ParseBindingsYAML reads a binding table from a YAML mapping of event
// lists to handler lists. Document order is preserved.
//
//	"change:foo change:bar": doA doB
//	reset: render
func ParseBindingsYAML(data []byte) (Bindings, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("statesync: parse bindings: %w", err)
	}
	if doc.Kind == 0 {
		return Bindings{}, nil
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return Bindings{}, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("statesync: bindings must be a mapping")
	}

	bindings := make(Bindings, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("statesync: bindings line %d: events and handlers must be strings", key.Line)
		}
		if len(tokens(key.Value)) == 0 || len(tokens(value.Value)) == 0 {
			return nil, fmt.Errorf("statesync: bindings line %d: empty events or handlers", key.Line)
		}
		bindings = append(bindings, Bind(key.Value, value.Value))
	}
	return bindings, nil
}
