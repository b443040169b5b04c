package patient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date layouts accepted for the birthdate, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// asString returns the value as a string when it is one.
func asString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// textOrEmpty mirrors the lenient text setters: anything that is not a string
// is stored as "".
func textOrEmpty(value interface{}) string {
	s, _ := asString(value)
	return strings.TrimSpace(s)
}

func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case *bool:
		if v == nil {
			return false, nil
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(strings.ToLower(v))
		switch s {
		case "", "off", "no":
			return false, nil
		case "on", "yes", "selected":
			return true, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to bool", v)
		}
		return b, nil
	}
	return false, fmt.Errorf("type is not supported: %T", value)
}

func asTime(value interface{}) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		return &v, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil, nil
		}
		t := *v
		return &t, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("cannot parse date %q", v)
	}
	return nil, fmt.Errorf("type is not supported: %T", value)
}

// decodeRows converts decoded JSON ([]interface{} of maps) or an already typed
// slice into out, which must be a pointer to a slice of row structs.
func decodeRows(value interface{}, out interface{}) error {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("type is not supported: %T", value)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("type is not supported: %T", value)
	}
	return nil
}

// dateOnly strips the time of day, keeping the calendar date of t in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
