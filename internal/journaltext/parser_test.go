package journaltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEntry = `Went for a walk with [[Ana Torres]] and thought about [[The Long Project]].

We ended up at the library, talking until late.
---

## PANAS
Interested:: 4
Distressed:: 2
Excited:: 3
Upset:: 1
Strong:: 4
Guilty:: 1
Scared:: 1
Hostile:: 1
Enthusiastic:: 4
Proud:: 3
Irritable:: 1
Alert:: 4
Ashamed:: 1
Inspired:: 4
Nervous:: 1
Determined:: 4
Attentive:: 4
Jittery:: 1
Active:: 4
Afraid:: 1

## BPNS
Autonomy1:: 5
Autonomy2:: 5
Competence1:: 4
Competence2:: 4
Relatedness1:: 5
Relatedness2:: 5
Relatedness3:: 4

## Flourishing Scale
Item1:: 6
Item2:: 6
Item3:: 7
Item4:: 6
Item5:: 7
Item6:: 6
Item7:: 7
Item8:: 6

## Sleep
Wake time: 07:30
Bedtime: 23:45
`

func TestParse_NarrationStopsAtDelimiter(t *testing.T) {
	p := Parse(sampleEntry, "2026-07-30")
	assert.Contains(t, p.Narration, "library, talking until late")
	assert.NotContains(t, p.Narration, "PANAS")
	assert.NotContains(t, p.Narration, "---")
}

func TestParse_NarrationStopsAtFirstSectionWhenNoDelimiter(t *testing.T) {
	raw := "Some narration text.\n\n## PANAS\nInterested:: 4\n"
	p := Parse(raw, "2026-07-30")
	assert.Equal(t, "Some narration text.", p.Narration)
}

func TestParse_PANASSplitsPositiveAndNegative(t *testing.T) {
	p := Parse(sampleEntry, "2026-07-30")
	require.Len(t, p.PANASPositive, 10)
	require.Len(t, p.PANASNegative, 10)
	assert.Equal(t, 4, p.PANASPositive[0])
	assert.Equal(t, 1, p.PANASNegative[0])
}

func TestParse_BPNSAndFlourishingCounts(t *testing.T) {
	p := Parse(sampleEntry, "2026-07-30")
	assert.Len(t, p.BPNS, 7)
	assert.Len(t, p.Flourishing, 8)
}

func TestParse_MissingSectionYieldsNilNotZeroed(t *testing.T) {
	raw := "Just narration, no sections at all."
	p := Parse(raw, "2026-07-30")
	assert.Nil(t, p.PANASPositive)
	assert.Nil(t, p.PANASNegative)
	assert.Nil(t, p.BPNS)
	assert.Nil(t, p.Flourishing)
}

func TestParse_WakeAndBedtimeSameDay(t *testing.T) {
	p := Parse(sampleEntry, "2026-07-30")
	require.NotNil(t, p.WakeTime)
	require.NotNil(t, p.SleepTime)
	assert.Equal(t, 7, p.WakeTime.Hour())
	assert.Equal(t, 30, p.WakeTime.Minute())
	assert.Equal(t, 23, p.SleepTime.Hour())
	assert.Equal(t, p.WakeTime.Day(), p.SleepTime.Day())
}

func TestParse_BedtimeBeforeWakeRollsOverToNextDay(t *testing.T) {
	raw := "## Sleep\nWake time: 0800\nBedtime: 0030\n"
	p := Parse(raw, "2026-07-30")
	require.NotNil(t, p.WakeTime)
	require.NotNil(t, p.SleepTime)
	assert.Equal(t, p.WakeTime.Day()+1, p.SleepTime.Day())
	assert.Equal(t, 0, p.SleepTime.Hour())
	assert.Equal(t, 30, p.SleepTime.Minute())
}

func TestExtractLinks_PlainAndAliased(t *testing.T) {
	links := ExtractLinks(sampleEntry)
	require.Len(t, links, 2)
	assert.Equal(t, "Ana Torres", links[0].Target)
	assert.Equal(t, "Ana Torres", links[0].Alias)
	assert.Equal(t, "The Long Project", links[1].Target)
}

func TestExtractLinks_WithAlias(t *testing.T) {
	links := ExtractLinks("Caught up with [[Ana Torres|Ana]] today.")
	require.Len(t, links, 1)
	assert.Equal(t, "Ana Torres", links[0].Target)
	assert.Equal(t, "Ana", links[0].Alias)
}
