package agents

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ShortTermLifecycle(t *testing.T) {
	m := NewMemory()

	m.SetShort("snapshot", "v1")
	v, ok := m.GetShort("snapshot")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	m.SetShort("snapshot", "v2")
	v, _ = m.GetShort("snapshot")
	assert.Equal(t, "v2", v)

	m.ClearShort()
	_, ok = m.GetShort("snapshot")
	assert.False(t, ok)
}

func TestMemory_LongTermMerge(t *testing.T) {
	m := NewMemory()

	m.LoadLongTerm(map[string]interface{}{"currency": "PHP"})
	m.LoadLongTerm(map[string]interface{}{"risk_tolerance": "moderate"})

	v, ok := m.GetLong("currency")
	require.True(t, ok)
	assert.Equal(t, "PHP", v)
	_, ok = m.GetLong("risk_tolerance")
	assert.True(t, ok)
}

func TestMemory_EpisodicTrimKeepsMostRecent(t *testing.T) {
	m := NewMemory()

	for i := 0; i < episodicCap; i++ {
		m.RecordEpisode(Episode{Experience: fmt.Sprintf("e%d", i), Importance: 0.1})
	}
	require.Equal(t, episodicCap, m.EpisodeCount(), "no trim at exactly the cap")

	// One more pushes past the cap and trims down to the keep size
	m.RecordEpisode(Episode{Experience: "overflow", Importance: 0.9})
	assert.Equal(t, episodicKeep, m.EpisodeCount())

	recent := m.RecentEpisodes(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "overflow", recent[0].Experience, "newest episode survives the trim")

	// Eviction is purely by recency: a high-importance old episode is gone
	all := m.RecentEpisodes(0)
	assert.Equal(t, fmt.Sprintf("e%d", episodicCap-episodicKeep+1), all[0].Experience)
}

func TestMemory_RecentEpisodesOrder(t *testing.T) {
	m := NewMemory()
	m.RecordEpisode(Episode{Experience: "first"})
	m.RecordEpisode(Episode{Experience: "second"})
	m.RecordEpisode(Episode{Experience: "third"})

	recent := m.RecentEpisodes(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Experience)
	assert.Equal(t, "third", recent[1].Experience)
}

func TestMemory_SemanticLoader(t *testing.T) {
	m := NewMemory()

	m.LoadSemantic(nil) // tolerated
	m.LoadSemantic(func() map[string]interface{} {
		return map[string]interface{}{"target_savings_rate": 0.2}
	})

	v, ok := m.GetSemantic("target_savings_rate")
	require.True(t, ok)
	assert.Equal(t, 0.2, v)
}
