package contract

import (
	"bytes"
	"encoding/json"
	"sort"
)

// LabelValueSet is a list of label values that tolerates both wire forms
// sources emit: the contract list form
//
//	[{"name": "RHIVOS OS ID", "value": "autosd"}, ...]
//
// and the legacy map form
//
//	{"RHIVOS OS ID": "autosd", ...}
//
// Map-form entries are sorted by name so decoding is deterministic.
type LabelValueSet []LabelValue

// UnmarshalJSON decodes either wire form into the list form.
func (s *LabelValueSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make(LabelValueSet, 0, len(m))
		for _, name := range names {
			out = append(out, LabelValue{Name: name, Value: m[name]})
		}
		*s = out
		return nil
	}
	var list []LabelValue
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = LabelValueSet(list)
	return nil
}

// Lookup returns the value of the first label with the given name.
func (s LabelValueSet) Lookup(name string) (any, bool) {
	for _, lv := range s {
		if lv.Name == name {
			return lv.Value, true
		}
	}
	return nil, false
}

// String returns the value of the named label when it is a string.
func (s LabelValueSet) String(name string) (string, bool) {
	v, ok := s.Lookup(name)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}
