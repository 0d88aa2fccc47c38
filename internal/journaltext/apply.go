package journaltext

import "github.com/alexelgier/minerva/internal/domain"

// Apply parses entry.RawText against entry.Date and fills in Narration,
// WakeTime, SleepTime, and the four psychometric vectors in place.
func Apply(entry *domain.JournalEntry) {
	p := Parse(entry.RawText, entry.Date)
	entry.Narration = p.Narration
	entry.WakeTime = p.WakeTime
	entry.SleepTime = p.SleepTime
	entry.PANASPositive = domain.PsychVector(p.PANASPositive)
	entry.PANASNegative = domain.PsychVector(p.PANASNegative)
	entry.BPNS = domain.PsychVector(p.BPNS)
	entry.Flourishing = domain.PsychVector(p.Flourishing)
}
