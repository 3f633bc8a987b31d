package feed

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var feedJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Operation is the kind of change a message carries.
type Operation string

const (
	// OperationInsert creates a record.
	OperationInsert Operation = "insert"
	// OperationUpdate merges attributes into a record.
	OperationUpdate Operation = "update"
	// OperationDelete removes a record.
	OperationDelete Operation = "delete"
)

// Control is the kind of a control message.
type Control string

const (
	ControlSnapshotStart Control = "snapshot-start"
	ControlSnapshotEnd   Control = "snapshot-end"
	ControlReset         Control = "reset"
)

// Headers contains metadata for change messages.
type Headers struct {
	Operation Operation `json:"operation"`
	// TxID groups related changes.
	TxID string `json:"txid,omitempty"`
	// Timestamp is RFC 3339.
	Timestamp string `json:"timestamp,omitempty"`
}

// ControlHeaders contains metadata for control messages.
type ControlHeaders struct {
	Control Control `json:"control"`
	Offset  string  `json:"offset,omitempty"`
}

// ChangeMessage is one record mutation. Value is a JSON object of
// attributes, required for insert and update.
type ChangeMessage struct {
	Type    string          `json:"type"`
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value,omitempty"`
	Headers Headers         `json:"headers"`
}

// ControlMessage manages stream lifecycle.
type ControlMessage struct {
	Headers ControlHeaders `json:"headers"`
}

// Attributes decodes Value
func (m *ChangeMessage) Attributes() (map[string]any, error) {
	if len(m.Value) == 0 {
		return map[string]any{}, nil
	}
	var attrs map[string]any
	if err := feedJSON.Unmarshal(m.Value, &attrs); err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}

// CompositeKey joins an entity type and key into one identifier.
func CompositeKey(entityType, key string) string {
	return entityType + "/" + key
}
