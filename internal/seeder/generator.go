package seeder

import (
	"strings"
	"time"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"
)

const (
	dateLayout     = "2006-01-02"
	firstMassTime  = "07:00"
	secondMassTime = "10:30"
	eventType      = "standard"
)

type scheduleEntry struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	EventType string `json:"event_type"`
	Notes     string `json:"notes,omitempty"`
}

type submission struct {
	participant string
	scheduleID  int64
	notes       string
}

// generator derives every random choice of a run from one seed.
// It is not safe for concurrent use; plans are built before submitting.
type generator struct {
	faker *gofakeit.Faker
}

func newGenerator(seed int64) *generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &generator{faker: gofakeit.New(uint64(seed))}
}

// names returns n distinct lower-case "first.last" names safe to use in a URL path.
func (g *generator) names(n int) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		name := slug(g.faker.FirstName()) + "." + slug(g.faker.LastName())
		if seen[name] {
			name += "." + g.faker.Numerify("###")
		}
		if seen[name] || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, s)
}

// schedule plans one early mass a day for days days ending on today, plus a
// second mass on Sundays.
func (g *generator) schedule(today time.Time, days int) []scheduleEntry {
	var out []scheduleEntry
	for d := today.AddDate(0, 0, -(days - 1)); !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		out = append(out, scheduleEntry{Date: date, Time: firstMassTime, EventType: eventType})
		if d.Weekday() == time.Sunday {
			out = append(out, scheduleEntry{Date: date, Time: secondMassTime, EventType: eventType, Notes: "sung mass"})
		}
	}
	return out
}

// submissions picks which entries each participant claims.
func (g *generator) submissions(participants []string, scheduleIDs []int64, attendance float64) []submission {
	var out []submission
	for _, p := range participants {
		for _, id := range scheduleIDs {
			if !g.chance(attendance) {
				continue
			}
			s := submission{participant: p, scheduleID: id}
			if g.faker.Bool() {
				s.notes = g.faker.Sentence(3)
			}
			out = append(out, s)
		}
	}
	g.faker.ShuffleAnySlice(out)
	return out
}

func (g *generator) chance(p float64) bool {
	return g.faker.Float64Range(0, 1) < p
}
