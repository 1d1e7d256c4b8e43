package utils

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalLenient decodes data into v, and when standard decoding fails it
// attempts to repair the payload with jsonrepair before retrying once.
// Provider SSE payloads are occasionally slightly malformed (truncated
// escapes, single quotes); repairing is cheaper than dropping the delta.
// Returns the original decode error when repair does not help.
func UnmarshalLenient(data string, v any) error {
	err := json.Unmarshal([]byte(data), v)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(data)
	if repairErr != nil {
		return err
	}
	if retryErr := json.Unmarshal([]byte(repaired), v); retryErr != nil {
		return err
	}
	return nil
}
