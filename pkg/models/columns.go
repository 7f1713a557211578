package models

import (
	"database/sql/driver"
	"sort"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// IntList is a JSON-encoded list of row ids. Album and track artist sets are
// stored sorted so that equality on the serialized form is deterministic.
type IntList []int

// Sorted returns a sorted copy.
func (l IntList) Sorted() IntList {
	out := make(IntList, len(l))
	copy(out, l)
	sort.Ints(out)
	return out
}

// Contains reports whether id is in the list.
func (l IntList) Contains(id int) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		l = IntList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *IntList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// StringList is a JSON-encoded list of strings (genre tags, image URLs).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return errors.WithStack(json.Unmarshal([]byte(v), dest))
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return errors.WithStack(json.Unmarshal(v, dest))
	default:
		return errors.Errorf("cannot scan %T into %T", src, dest)
	}
}
