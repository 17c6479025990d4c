package task

import (
	"bytes"
	"encoding/json"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Task records are shared with agents that write the files directly, so
// fields this package does not model are carried in Extra and written back
// after the known ones.

type (
	taskJSON   Task
	createJSON CreateRequest
	updateJSON UpdateRequest
)

var (
	taskFields   = jsonFields(reflect.TypeFor[Task]())
	createFields = jsonFields(reflect.TypeFor[CreateRequest]())
	updateFields = jsonFields(reflect.TypeFor[UpdateRequest]())
)

// MarshalJSON encodes the modelled fields followed by Extra in key order.
func (t Task) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(taskJSON(t))
	if err != nil {
		return nil, err
	}
	return appendExtra(data, t.Extra, taskFields)
}

// UnmarshalJSON decodes the modelled fields and keeps every other key in Extra.
func (t *Task) UnmarshalJSON(data []byte) error {
	var v taskJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, taskFields)
	if err != nil {
		return err
	}
	*t = Task(v)
	t.Extra = extra
	return nil
}

func (r *CreateRequest) UnmarshalJSON(data []byte) error {
	var v createJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, createFields)
	if err != nil {
		return err
	}
	*r = CreateRequest(v)
	r.Extra = extra
	return nil
}

func (r *UpdateRequest) UnmarshalJSON(data []byte) error {
	var v updateJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, updateFields)
	if err != nil {
		return err
	}
	*r = UpdateRequest(v)
	r.Extra = extra
	return nil
}

// jsonFields returns the lower-cased JSON names of the encoded fields of t.
// encoding/json matches keys case-insensitively, so lookups lower-case too.
func jsonFields(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names[strings.ToLower(name)] = true
	}
	return names
}

// unknownFields returns the compacted values of the object keys in data that
// are not in known, or nil when there are none. data must already be valid.
func unknownFields(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var (
		extra map[string]json.RawMessage
		err   error
	)
	gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
		if known[strings.ToLower(k.String())] {
			return true
		}
		var buf bytes.Buffer
		if err = json.Compact(&buf, []byte(v.Raw)); err != nil {
			return false
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k.String()] = buf.Bytes()
		return true
	})
	return extra, err
}

// appendExtra splices the extra members into the encoded object data. Keys
// that collide with a modelled field are skipped.
func appendExtra(data []byte, extra map[string]json.RawMessage, known map[string]bool) ([]byte, error) {
	if len(extra) == 0 {
		return data, nil
	}
	out := bytes.TrimRight(data, " \n")
	out = slices.Clone(out[:len(out)-1])
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		if known[strings.ToLower(k)] {
			continue
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		if len(out) > 1 {
			out = append(out, ',')
		}
		out = append(out, key...)
		out = append(out, ':')
		out = append(out, extra[k]...)
	}
	return append(out, '}'), nil
}
