package amqp

import (
	"encoding/json"
	"time"
)

// Actions carried by an EntrySyncMessage.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// EntrySyncMessage tells the export worker that a ledger entry changed.
// It carries only the entry ID and the action; the worker fetches the
// current row from the database, so a stale message is harmless.
type EntrySyncMessage struct {
	EntryID   string    `json:"entry_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntrySyncMessage(entryID, action string) *EntrySyncMessage {
	return &EntrySyncMessage{
		EntryID:   entryID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
