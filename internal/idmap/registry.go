package idmap

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind names one entity family whose source→destination identifiers the
// registry tracks.
type Kind string

const (
	KindAuthors          Kind = "authors"
	KindCategories       Kind = "categories"
	KindArticles         Kind = "articles"
	KindPages            Kind = "pages"
	KindMedia            Kind = "media"
	KindForms            Kind = "forms"
	KindVideos           Kind = "videos"
	KindMeditationTitles Kind = "meditation-titles"
)

// numericKinds use int64 source keys; everything else keys on a natural
// string (URL, form type, provider video id).
var numericKinds = map[Kind]bool{
	KindAuthors:          true,
	KindCategories:       true,
	KindArticles:         true,
	KindPages:            true,
	KindMeditationTitles: true,
}

// Registry holds one source→destination map per entity kind. Writes are
// first-write-wins: a mapping, once set, keeps its value for the rest of the
// run so identities stay stable.
type Registry struct {
	numeric map[Kind]map[int64]string
	natural map[Kind]map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		numeric: map[Kind]map[int64]string{},
		natural: map[Kind]map[string]string{},
	}
}

func (r *Registry) SetID(kind Kind, sourceID int64, destID string) {
	m := r.numeric[kind]
	if m == nil {
		m = map[int64]string{}
		r.numeric[kind] = m
	}
	if _, exists := m[sourceID]; exists {
		return
	}
	m[sourceID] = destID
}

func (r *Registry) ID(kind Kind, sourceID int64) (string, bool) {
	id, ok := r.numeric[kind][sourceID]
	return id, ok
}

func (r *Registry) SetKey(kind Kind, sourceKey, destID string) {
	m := r.natural[kind]
	if m == nil {
		m = map[string]string{}
		r.natural[kind] = m
	}
	if _, exists := m[sourceKey]; exists {
		return
	}
	m[sourceKey] = destID
}

func (r *Registry) Key(kind Kind, sourceKey string) (string, bool) {
	id, ok := r.natural[kind][sourceKey]
	return id, ok
}

// IDMap returns the live numeric map for kind, creating it when absent. The
// conversion context reads these directly; there is a single writer, so
// sharing is safe.
func (r *Registry) IDMap(kind Kind) map[int64]string {
	m := r.numeric[kind]
	if m == nil {
		m = map[int64]string{}
		r.numeric[kind] = m
	}
	return m
}

func (r *Registry) KeyMap(kind Kind) map[string]string {
	m := r.natural[kind]
	if m == nil {
		m = map[string]string{}
		r.natural[kind] = m
	}
	return m
}

// Serialize flattens every map to string keys; Deserialize coerces keys back
// to numbers for numeric kinds and leaves natural kinds as strings.
func (r *Registry) Serialize() ([]byte, error) {
	out := map[Kind]map[string]string{}
	for kind, m := range r.numeric {
		flat := map[string]string{}
		for id, dest := range m {
			flat[strconv.FormatInt(id, 10)] = dest
		}
		out[kind] = flat
	}
	for kind, m := range r.natural {
		flat := map[string]string{}
		for key, dest := range m {
			flat[key] = dest
		}
		out[kind] = flat
	}
	return json.MarshalIndent(out, "", "  ")
}

func Deserialize(data []byte) (*Registry, error) {
	var raw map[Kind]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode id map: %w", err)
	}
	r := NewRegistry()
	for kind, flat := range raw {
		if numericKinds[kind] {
			for key, dest := range flat {
				id, err := strconv.ParseInt(key, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("id map kind %s: key %q is not numeric: %w", kind, key, err)
				}
				r.SetID(kind, id, dest)
			}
			continue
		}
		for key, dest := range flat {
			r.SetKey(kind, key, dest)
		}
	}
	return r, nil
}
