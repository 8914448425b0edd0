package taskqueue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/agentq/internal/errors"
)

// CurrentSchemaVersion is the payload schema version stamped on new records
// unless the creator declares another.
const CurrentSchemaVersion = 1

// EncodePayload marshals v for use as a record payload. A nil v encodes as
// an empty object so workers never see a null payload.
func EncodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("payload is not JSON-encodable: %v", err)).WithField("payload")
	}
	return data, nil
}

// DecodePayload unmarshals the record's payload into a T. Records written by
// a newer schema than the caller understands are rejected instead of being
// decoded into a struct that silently drops fields.
func DecodePayload[T any](rec *Record, maxVersion int) (T, error) {
	var out T
	if rec.SchemaVersion > maxVersion {
		return out, errors.NewValidationError(fmt.Sprintf(
			"task %s has payload schema v%d, reader supports up to v%d", rec.ID, rec.SchemaVersion, maxVersion)).
			WithField("schema_version").
			WithValue(rec.SchemaVersion)
	}
	if len(bytes.TrimSpace(rec.Payload)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(rec.Payload, &out); err != nil {
		return out, fmt.Errorf("decode payload of %s: %w", rec.ID, err)
	}
	return out, nil
}

// normalizePayload validates raw JSON and substitutes {} for empty input.
func normalizePayload(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, errors.NewValidationError("payload is not valid JSON").WithField("payload")
	}
	return raw, nil
}
