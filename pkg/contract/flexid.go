package contract

import (
	"encoding/json"
	"fmt"
)

// FlexID is an identifier that tolerates the numeric ids some backends emit.
// Horreum returns test/run/dataset ids as JSON numbers while the contract
// specifies strings; FlexID decodes both and always marshals as a string.
type FlexID string

// UnmarshalJSON decodes a JSON string or number.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// String returns the id as a plain string.
func (f FlexID) String() string { return string(f) }
