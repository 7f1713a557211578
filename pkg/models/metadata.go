package models

import (
	"database/sql/driver"
	"sort"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// Metadata is the per-entity metadata bag: external provider ids, source
// URLs, and audio preview URLs, plus a free-form string map for anything a
// provider returns that has no dedicated column. Stored as a JSON TEXT
// column.
type Metadata struct {
	ProviderIDs map[string]string `json:"provider_ids,omitempty"`
	SourceURLs  map[string]string `json:"source_urls,omitempty"`
	AudioURLs   []string          `json:"audio_urls,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Merge combines two metadata bags. Maps are merged key-wise with incoming
// winning per key, then filtered to drop empty-string values; audio URLs are
// unioned as a set; extra fields spread with incoming overriding existing.
// Pure and total.
func (m Metadata) Merge(incoming Metadata) Metadata {
	merged := Metadata{
		ProviderIDs: mergeStringMap(m.ProviderIDs, incoming.ProviderIDs),
		SourceURLs:  mergeStringMap(m.SourceURLs, incoming.SourceURLs),
		AudioURLs:   unionStrings(m.AudioURLs, incoming.AudioURLs),
		Extra:       mergeStringMap(m.Extra, incoming.Extra),
	}
	return merged
}

// IsZero reports whether the bag carries no data at all.
func (m Metadata) IsZero() bool {
	return len(m.ProviderIDs) == 0 && len(m.SourceURLs) == 0 && len(m.AudioURLs) == 0 && len(m.Extra) == 0
}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		if v == "" {
			*m = Metadata{}
			return nil
		}
		return errors.WithStack(json.Unmarshal([]byte(v), m))
	case []byte:
		if len(v) == 0 {
			*m = Metadata{}
			return nil
		}
		return errors.WithStack(json.Unmarshal(v, m))
	default:
		return errors.Errorf("metadata: cannot scan %T", src)
	}
}

func mergeStringMap(existing, incoming map[string]string) map[string]string {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}
	merged := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	// Empty values carry no signal and would shadow a future real value.
	for k, v := range merged {
		if v == "" {
			delete(merged, k)
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		if s != "" {
			seen[s] = struct{}{}
		}
	}
	for _, s := range b {
		if s != "" {
			seen[s] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	union := make([]string, 0, len(seen))
	for s := range seen {
		union = append(union, s)
	}
	sort.Strings(union)
	return union
}
