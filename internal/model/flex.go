package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString is a string field that LabCAS may deliver as either a bare JSON
// scalar or a single-element list. It always unmarshals to the canonical
// string form so callers never branch on representation.
type FlexString string

// UnmarshalJSON accepts a string, a list (first element wins), a number, a
// bool, or null.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = FlexString(StringValue(v))
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// StringValue normalizes a decoded Solr field value to a single string. Lists
// collapse to their first element; nil becomes the empty string. This is the
// one list-or-scalar normalization point for the whole pipeline.
func StringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) == 0 {
			return ""
		}
		return StringValue(t[0])
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// IntValue normalizes a decoded Solr field value to an int64. Lists collapse
// to their first element; anything non-numeric comes back as zero.
func IntValue(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return n
	case []any:
		if len(t) == 0 {
			return 0
		}
		return IntValue(t[0])
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
