package feed

import (
	"errors"
	"fmt"
	"time"
)

// Insert creates an insert change message.
//
//	msg, err := feed.Insert("todo", "1", map[string]any{"title": "write docs"})
func Insert(entityType, key string, attrs map[string]any, opts ...ChangeOption) (*ChangeMessage, error) {
	return newChangeMessage(OperationInsert, entityType, key, attrs, opts...)
}

// Update creates an update change message. Only the given attributes change.
func Update(entityType, key string, attrs map[string]any, opts ...ChangeOption) (*ChangeMessage, error) {
	return newChangeMessage(OperationUpdate, entityType, key, attrs, opts...)
}

// Delete creates a delete change message.
func Delete(entityType, key string, opts ...ChangeOption) (*ChangeMessage, error) {
	return newChangeMessage(OperationDelete, entityType, key, nil, opts...)
}

func newChangeMessage(op Operation, entityType, key string, attrs map[string]any, opts ...ChangeOption) (*ChangeMessage, error) {
	if entityType == "" {
		return nil, errors.New("feed: entity type cannot be empty")
	}
	if key == "" {
		return nil, errors.New("feed: key cannot be empty")
	}

	cfg := &changeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	msg := &ChangeMessage{
		Type: entityType,
		Key:  key,
		Headers: Headers{
			Operation: op,
			TxID:      cfg.txID,
		},
	}

	if cfg.timestamp != nil {
		msg.Headers.Timestamp = cfg.timestamp.Format(time.RFC3339Nano)
	} else if cfg.autoTimestamp {
		msg.Headers.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if attrs != nil {
		data, err := feedJSON.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("feed: marshal value: %w", err)
		}
		msg.Value = data
	}

	return msg, nil
}

// SnapshotStart creates a snapshot-start control message.
func SnapshotStart(offset string) *ControlMessage {
	return &ControlMessage{Headers: ControlHeaders{Control: ControlSnapshotStart, Offset: offset}}
}

// SnapshotEnd creates a snapshot-end control message.
func SnapshotEnd(offset string) *ControlMessage {
	return &ControlMessage{Headers: ControlHeaders{Control: ControlSnapshotEnd, Offset: offset}}
}

// Reset creates a reset control message. Applying it empties every
// registered collection.
func Reset(offset string) *ControlMessage {
	return &ControlMessage{Headers: ControlHeaders{Control: ControlReset, Offset: offset}}
}
