package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/jilio/statesync"
)

// target is one registered collection and its key index
type target struct {
	collection *statesync.Collection
	byKey      map[string]*statesync.Model
}

// Materializer applies change and control messages to registered
// collections.
type Materializer struct {
	targets    map[string]*target
	cfg        *materializerConfig
	mu         sync.RWMutex
	lastOffset string
}

// NewMaterializer creates a Materializer.
func NewMaterializer(opts ...MaterializerOption) *Materializer {
	cfg := defaultMaterializerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Materializer{
		targets: make(map[string]*target),
		cfg:     cfg,
	}
}

// Register routes changes for entityType to collection. Models already in
// the collection are indexed by their key attribute.
func Register(m *Materializer, entityType string, collection *statesync.Collection) {
	t := &target{collection: collection, byKey: make(map[string]*statesync.Model)}
	for _, model := range collection.Models() {
		if key, ok := model.Get(m.cfg.keyAttribute).(string); ok && key != "" {
			t.byKey[key] = model
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[entityType] = t
}

// Lookup returns the model stored under entityType and key
func (m *Materializer) Lookup(entityType, key string) (*statesync.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[entityType]
	if !ok {
		return nil, false
	}
	model, ok := t.byKey[key]
	return model, ok
}

// Apply processes one JSON-encoded change or control message and records
// offset as the last applied position.
func (m *Materializer) Apply(offset string, data []byte) error {
	var raw struct {
		Headers struct {
			Control Control `json:"control"`
		} `json:"headers"`
	}
	if err := feedJSON.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("feed: unmarshal message: %w", err)
	}

	if raw.Headers.Control != "" {
		var ctrl ControlMessage
		if err := feedJSON.Unmarshal(data, &ctrl); err != nil {
			return fmt.Errorf("feed: unmarshal control message: %w", err)
		}
		if err := m.ApplyControlMessage(&ctrl); err != nil {
			return err
		}
	} else {
		var change ChangeMessage
		if err := feedJSON.Unmarshal(data, &change); err != nil {
			return fmt.Errorf("feed: unmarshal change message: %w", err)
		}
		if err := m.ApplyChangeMessage(&change); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.lastOffset = offset
	m.mu.Unlock()
	return nil
}

// ApplyChangeMessage applies msg to the collection registered for its type.
// Insert and update both upsert: a missing record is added, an existing one
// has the message attributes merged in.
func (m *Materializer) ApplyChangeMessage(msg *ChangeMessage) error {
	m.mu.RLock()
	t, ok := m.targets[msg.Type]
	m.mu.RUnlock()

	if !ok {
		if m.cfg.strictSchema {
			return fmt.Errorf("feed: unknown entity type: %s", msg.Type)
		}
		return nil
	}

	if err := m.applyChange(t, msg); err != nil {
		if m.cfg.onError != nil {
			m.cfg.onError(err)
		}
		return err
	}
	return nil
}

func (m *Materializer) applyChange(t *target, msg *ChangeMessage) error {
	switch msg.Headers.Operation {
	case OperationInsert, OperationUpdate:
		attrs, err := msg.Attributes()
		if err != nil {
			return fmt.Errorf("feed: unmarshal value for %s: %w", CompositeKey(msg.Type, msg.Key), err)
		}

		// The message key owns the key attribute.
		delete(attrs, m.cfg.keyAttribute)

		m.mu.Lock()
		model, exists := t.byKey[msg.Key]
		if !exists {
			created := maps.Clone(attrs)
			created[m.cfg.keyAttribute] = msg.Key
			model = statesync.NewModel(created)
			t.byKey[msg.Key] = model
		}
		m.mu.Unlock()

		m.cfg.logger.Debug("applying change", "key", CompositeKey(msg.Type, msg.Key), "operation", string(msg.Headers.Operation), "exists", exists)
		if !exists {
			return t.collection.Add(model)
		}
		return model.Set(attrs)

	case OperationDelete:
		m.mu.Lock()
		model, exists := t.byKey[msg.Key]
		delete(t.byKey, msg.Key)
		m.mu.Unlock()

		if !exists {
			return nil
		}
		m.cfg.logger.Debug("applying change", "key", CompositeKey(msg.Type, msg.Key), "operation", string(msg.Headers.Operation))
		return t.collection.Remove(model)

	default:
		return fmt.Errorf("feed: unknown operation %q for %s", msg.Headers.Operation, CompositeKey(msg.Type, msg.Key))
	}
}

// ApplyControlMessage applies a control message. Reset empties every
// registered collection, triggering "reset" on each in entity type order.
func (m *Materializer) ApplyControlMessage(msg *ControlMessage) error {
	switch msg.Headers.Control {
	case ControlReset:
		m.mu.Lock()
		targets := make([]*target, 0, len(m.targets))
		for _, entityType := range slices.Sorted(maps.Keys(m.targets)) {
			t := m.targets[entityType]
			t.byKey = make(map[string]*statesync.Model)
			targets = append(targets, t)
		}
		m.mu.Unlock()

		for _, t := range targets {
			if err := t.collection.Reset(); err != nil {
				return err
			}
		}
		m.cfg.logger.Info("feed reset", "collections", len(targets), "offset", msg.Headers.Offset)
		if m.cfg.onReset != nil {
			m.cfg.onReset()
		}

	case ControlSnapshotStart:
		if m.cfg.onSnapshot != nil {
			m.cfg.onSnapshot(true)
		}

	case ControlSnapshotEnd:
		if m.cfg.onSnapshot != nil {
			m.cfg.onSnapshot(false)
		}

	default:
		return fmt.Errorf("feed: unknown control %q", msg.Headers.Control)
	}
	return nil
}

// LastOffset returns the offset of the last message applied through Apply
// or Replay.
func (m *Materializer) LastOffset() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastOffset
}

// Replay applies a newline-delimited JSON stream. The offset of each
// message is its 1-based line number; blank lines are skipped. Lines longer
// than the configured maximum stop the replay with bufio.ErrTooLong.
func (m *Materializer) Replay(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, m.cfg.maxLineSize)), m.cfg.maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		if err := m.Apply(strconv.Itoa(line), data); err != nil {
			return fmt.Errorf("feed: line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("feed: read stream: %w", err)
	}
	return nil
}
