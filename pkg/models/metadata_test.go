package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataMergeCommutesOnNonConflictingKeys(t *testing.T) {
	a := Metadata{
		ProviderIDs: map[string]string{"spotify": "sp-1"},
		SourceURLs:  map[string]string{"spotify": "https://open.spotify.com/sp-1"},
		AudioURLs:   []string{"https://cdn.example/a.mp3"},
	}
	b := Metadata{
		ProviderIDs: map[string]string{"musicbrainz": "mb-1"},
		SourceURLs:  map[string]string{"musicbrainz": "https://musicbrainz.org/mb-1"},
		AudioURLs:   []string{"https://cdn.example/b.mp3"},
		Extra:       map[string]string{"label": "4AD"},
	}

	ab := a.Merge(b)
	ba := b.Merge(a)
	assert.Equal(t, ab, ba)

	assert.Equal(t, map[string]string{"spotify": "sp-1", "musicbrainz": "mb-1"}, ab.ProviderIDs)
	assert.Equal(t, []string{"https://cdn.example/a.mp3", "https://cdn.example/b.mp3"}, ab.AudioURLs)
	assert.Equal(t, "4AD", ab.Extra["label"])
}

func TestMetadataMergeIncomingWinsPerKey(t *testing.T) {
	existing := Metadata{ProviderIDs: map[string]string{"spotify": "old"}}
	incoming := Metadata{ProviderIDs: map[string]string{"spotify": "new"}}

	assert.Equal(t, "new", existing.Merge(incoming).ProviderIDs["spotify"])
}

func TestMetadataMergeDropsEmptyValues(t *testing.T) {
	existing := Metadata{
		ProviderIDs: map[string]string{"spotify": "sp-1"},
		AudioURLs:   []string{""},
	}
	incoming := Metadata{
		ProviderIDs: map[string]string{"deezer": ""},
		SourceURLs:  map[string]string{"spotify": ""},
	}

	merged := existing.Merge(incoming)
	assert.Equal(t, map[string]string{"spotify": "sp-1"}, merged.ProviderIDs)
	assert.Nil(t, merged.SourceURLs)
	assert.Nil(t, merged.AudioURLs)
	assert.True(t, Metadata{}.Merge(Metadata{}).IsZero())
}

func TestMetadataMergeUnionsAudioURLs(t *testing.T) {
	a := Metadata{AudioURLs: []string{"https://cdn.example/a.mp3", "https://cdn.example/shared.mp3"}}
	b := Metadata{AudioURLs: []string{"https://cdn.example/shared.mp3", "https://cdn.example/b.mp3"}}

	merged := a.Merge(b)
	assert.Equal(t, []string{
		"https://cdn.example/a.mp3",
		"https://cdn.example/b.mp3",
		"https://cdn.example/shared.mp3",
	}, merged.AudioURLs)
}
