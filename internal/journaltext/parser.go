// Package journaltext parses the bit-level journal text format: section
// headings for PANAS/BPNS/Flourishing Scale/Sleep, <label>:: <integer>
// psychometric lines, wake/bed time lines (with midnight rollover), and
// the narration boundary.
package journaltext

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	panasLen       = 10
	bpnsLen        = 7
	flourishingLen = 8
)

// Parsed is everything journaltext extracts from one journal entry's raw
// text, ready to populate a domain.JournalEntry.
type Parsed struct {
	Narration     string
	WakeTime      *time.Time
	SleepTime     *time.Time
	PANASPositive []int
	PANASNegative []int
	BPNS          []int
	Flourishing   []int
}

var sectionHeading = regexp.MustCompile(`(?m)^##\s*(PANAS|BPNS|Flourishing Scale|Sleep)\s*$`)
var psychItem = regexp.MustCompile(`^(.+?)::\s*(-?\d+)\s*$`)
var wakeLine = regexp.MustCompile(`(?i)^Wake time:\s*([0-9]{1,2}):?([0-9]{2})\s*$`)
var bedLine = regexp.MustCompile(`(?i)^Bedtime:\s*([0-9]{1,2}):?([0-9]{2})\s*$`)

// Parse parses raw journal text against the journal's calendar date
// (YYYY-MM-DD, used to anchor wake/bed times and their midnight rollover).
func Parse(raw, date string) Parsed {
	narration := extractNarration(raw)

	sections := splitSections(raw)

	var panasPos, panasNeg, bpns, flourishing []int
	var wake, sleep *time.Time

	for heading, body := range sections {
		switch heading {
		case "PANAS":
			// Items are split by position, not by label: the first
			// panasLen integers collected are PANAS+, the next panasLen
			// are PANAS-, in presentation order.
			items := collectInts(body)
			if len(items) >= panasLen {
				panasPos = items[:panasLen]
			}
			if len(items) >= panasLen*2 {
				panasNeg = items[panasLen : panasLen*2]
			}
		case "BPNS":
			items := collectInts(body)
			if len(items) >= bpnsLen {
				bpns = items[:bpnsLen]
			}
		case "Flourishing Scale":
			items := collectInts(body)
			if len(items) >= flourishingLen {
				flourishing = items[:flourishingLen]
			}
		case "Sleep":
			wake, sleep = parseSleepSection(body, date)
		}
	}

	return Parsed{
		Narration:     narration,
		WakeTime:      wake,
		SleepTime:     sleep,
		PANASPositive: panasPos,
		PANASNegative: panasNeg,
		BPNS:          bpns,
		Flourishing:   flourishing,
	}
}

// extractNarration returns the text before the first "---" delimiter or
// the first psychometric section heading, whichever comes first.
func extractNarration(raw string) string {
	cut := len(raw)
	if idx := strings.Index(raw, "\n---"); idx >= 0 && idx < cut {
		cut = idx
	} else if strings.HasPrefix(raw, "---") {
		cut = 0
	}
	if loc := sectionHeading.FindStringIndex(raw); loc != nil && loc[0] < cut {
		cut = loc[0]
	}
	return strings.TrimSpace(raw[:cut])
}

// splitSections returns the body text following each recognized section
// heading, up to the next heading or end of text.
func splitSections(raw string) map[string]string {
	locs := sectionHeading.FindAllStringSubmatchIndex(raw, -1)
	sections := make(map[string]string, len(locs))
	for i, loc := range locs {
		headingEnd := loc[1]
		bodyEnd := len(raw)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		name := raw[loc[2]:loc[3]]
		sections[name] = raw[headingEnd:bodyEnd]
	}
	return sections
}

// collectInts scans body line by line for "<label>:: <integer>" entries,
// in presentation order.
func collectInts(body string) []int {
	var out []int
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		m := psychItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// parseSleepSection reads "Wake time: HHMM"/"HH:MM" and "Bedtime: ..."
// lines, anchoring both to date. If bedtime is earlier than wake time of
// day, bedtime rolls over to the following calendar day.
func parseSleepSection(body, date string) (wake, sleep *time.Time) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, nil
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if m := wakeLine.FindStringSubmatch(line); m != nil {
			t := atClockTime(day, m[1], m[2])
			wake = &t
		}
		if m := bedLine.FindStringSubmatch(line); m != nil {
			t := atClockTime(day, m[1], m[2])
			sleep = &t
		}
	}

	if wake != nil && sleep != nil && sleep.Before(*wake) {
		rolled := sleep.AddDate(0, 0, 1)
		sleep = &rolled
	}
	return wake, sleep
}

func atClockTime(day time.Time, hourStr, minStr string) time.Time {
	hour, _ := strconv.Atoi(hourStr)
	min, _ := strconv.Atoi(minStr)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.UTC)
}
