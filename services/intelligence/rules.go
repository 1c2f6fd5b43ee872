package intelligence

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"calbook/models"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// RuleExtractor understands common English phrasings. Dates and clock times
// come from the when parser; the rest is keyword matching. It needs no
// network and is used offline and as a fallback.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor { return &RuleExtractor{} }

var (
	monthDates = newParser(en.ExactMonthDate(rules.Override), common.SlashDMY(rules.Override))
	casualDays = newParser(en.CasualDate(rules.Override))
	weekdays   = newParser(en.Weekday(rules.Override))
	clockTimes = newParser(en.HourMinute(rules.Override), en.Hour(rules.Override))
)

var (
	reBareOrdinal = regexp.MustCompile(`^#?\s*(\d{1,2})[.)]?$`)
	reOrdinalNum  = regexp.MustCompile(`(?:\b(?:option|slot|number|choice)\s*|#\s*)(\d{1,2})\b`)
	reOrdinal     = regexp.MustCompile(`\b(first|second|third|fourth|fifth)\b`)
	reTitle       = regexp.MustCompile(`\b(?:called|titled|named)\s+"?([^"]+?)"?\s*$`)
	reQuoted      = regexp.MustCompile(`"([^"]+)"`)
	reWord        = regexp.MustCompile(`[a-z']+`)
)

var ordinals = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5}

var (
	cancelPhrases  = []string{"cancel", "never mind", "nevermind", "forget it", "stop"}
	denyPhrases    = []string{"none of", "neither", "doesn't work", "does not work", "not that", "something else", "another time", "other time"}
	denyWords      = map[string]bool{"no": true, "nope": true, "nah": true}
	confirmPhrases = []string{"sounds good", "book it", "go ahead", "that works", "works for me", "please do", "do it", "try again"}
	confirmWords   = map[string]bool{"yes": true, "yep": true, "yeah": true, "sure": true, "ok": true, "okay": true, "confirm": true, "confirmed": true, "perfect": true, "great": true, "correct": true, "retry": true}
)

func newParser(rs ...rules.Rule) *when.Parser {
	p := when.New(nil)
	p.Add(rs...)
	return p
}

func (r *RuleExtractor) Extract(ctx context.Context, utterance string, sc models.SessionContext) (models.StructuredIntent, error) {
	text := strings.ToLower(strings.TrimSpace(utterance))
	now := sc.Now.In(locationOf(sc.Timezone))
	iso, rest := splitISODate(text)
	date := iso
	if date == nil {
		date = parseDate(rest, now)
	}
	return models.StructuredIntent{
		Date:            date,
		Time:            parseTime(rest, now),
		DurationMinutes: parseDuration(rest),
		SlotOrdinal:     parseOrdinal(text),
		Signal:          parseSignal(text),
		Title:           parseTitle(strings.TrimSpace(utterance)),
	}, nil
}

func locationOf(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func day(t time.Time) string { return t.Format(models.DateLayout) }

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// splitISODate pulls a 2006-01-02 token out of text so the clock parser
// cannot read its digits as a time.
func splitISODate(text string) (*models.DateHint, string) {
	fields := strings.Fields(text)
	for i, f := range fields {
		tok := strings.Trim(f, ",.;!?()")
		if _, err := time.Parse(models.DateLayout, tok); err == nil {
			rest := append(append([]string{}, fields[:i]...), fields[i+1:]...)
			return &models.DateHint{From: tok, To: tok}, strings.Join(rest, " ")
		}
	}
	return nil, text
}

// parse runs p and reports the matched instant and text, treating parser
// errors as no match.
func parse(p *when.Parser, text string, now time.Time) (time.Time, string, bool) {
	r, err := p.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, "", false
	}
	return r.Time.In(now.Location()), r.Text, true
}

var weekdayNames = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true, "saturday": true, "sunday": true,
	"mon": true, "tue": true, "tues": true, "wed": true, "thu": true, "thur": true, "thurs": true, "fri": true,
}

// namesWeekday skips "sat" and "sun", which are more often plain words.
func namesWeekday(text string) bool {
	for _, w := range tokens(text) {
		if weekdayNames[w] {
			return true
		}
	}
	return false
}

func parseDate(text string, now time.Time) *models.DateHint {
	today := midnight(now)
	single := func(t time.Time) *models.DateHint { return &models.DateHint{From: day(t), To: day(t)} }

	// a bare month name ("may I ...") is not a date
	if t, matched, ok := parse(monthDates, text, now); ok && (strings.ContainsAny(matched, "0123456789") || reOrdinal.MatchString(matched)) {
		t = midnight(t)
		if t.Before(today) {
			t = t.AddDate(1, 0, 0)
		}
		return single(t)
	}
	switch {
	case strings.Contains(text, "day after tomorrow"):
		return single(today.AddDate(0, 0, 2))
	case strings.Contains(text, "this afternoon"), strings.Contains(text, "this morning"):
		return single(today)
	}
	if t, _, ok := parse(casualDays, text, now); ok {
		return single(midnight(t))
	}
	if t, _, ok := parse(weekdays, text, now); ok && namesWeekday(text) {
		// a weekday always means the next one, one to seven days ahead
		t = midnight(t)
		for !t.After(today) {
			t = t.AddDate(0, 0, 7)
		}
		for t.After(today.AddDate(0, 0, 7)) {
			t = t.AddDate(0, 0, -7)
		}
		return single(t)
	}
	switch {
	case strings.Contains(text, "next week"):
		ahead := (int(time.Monday) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		monday := today.AddDate(0, 0, ahead)
		return &models.DateHint{From: day(monday), To: day(monday.AddDate(0, 0, 4))}
	case strings.Contains(text, "this week"):
		back := (int(today.Weekday()) + 6) % 7
		friday := today.AddDate(0, 0, 4-back)
		if friday.Before(today) {
			friday = today
		}
		return &models.DateHint{From: day(today), To: day(friday)}
	}
	return nil
}

func parseTime(text string, now time.Time) *models.TimeHint {
	hint := models.TimeHint{}
	if t, _, ok := parse(clockTimes, text, now); ok {
		hint.Exact = clock(t.Hour(), t.Minute())
	} else if strings.Contains(text, "noon") || strings.Contains(text, "midday") {
		hint.Exact = "12:00"
	} else if h, ok := atHour(text); ok {
		hint.Exact = clock(h, 0)
	}
	if hint.Exact == "" {
		switch {
		case strings.Contains(text, "morning"):
			hint.Period = models.PeriodMorning
		case strings.Contains(text, "afternoon"):
			hint.Period = models.PeriodAfternoon
		case strings.Contains(text, "evening"), strings.Contains(text, "tonight"):
			hint.Period = models.PeriodEvening
		}
	}
	if hint.Exact == "" && hint.Period == models.PeriodNone {
		return nil
	}
	return &hint
}

// atHour reads a bare "at 3" within working hours: 1-7 is afternoon, 8-12
// is morning.
func atHour(text string) (int, bool) {
	words := tokens(text)
	for i := 0; i+1 < len(words); i++ {
		if words[i] != "at" {
			continue
		}
		h, err := strconv.Atoi(words[i+1])
		if err != nil {
			continue
		}
		switch {
		case h >= 1 && h <= 7:
			return h + 12, true
		case h >= 8 && h <= 12:
			return h, true
		}
	}
	return 0, false
}

func clock(h, m int) string {
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format(models.ClockLayout)
}

// tokens splits text into words and numbers, separating glued units such as
// "90min" or "1.5h".
func tokens(text string) []string {
	var out []string
	var cur []rune
	kind := 0 // 1 digit, 2 letter
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.TrimRight(string(cur), "."))
			cur = cur[:0]
		}
		kind = 0
	}
	for _, r := range text {
		k := 0
		switch {
		case unicode.IsDigit(r), r == '.' && kind == 1:
			k = 1
		case unicode.IsLetter(r), r == '\'':
			k = 2
		}
		if k == 0 || (kind != 0 && k != kind) {
			flush()
		}
		if k != 0 {
			cur = append(cur, r)
			kind = k
		}
	}
	flush()
	return out
}

var numberWords = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8,
	"nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50, "sixty": 60, "ninety": 90,
}

var (
	hourUnits   = map[string]bool{"hour": true, "hours": true, "hr": true, "hrs": true, "h": true}
	minuteUnits = map[string]bool{"minute": true, "minutes": true, "min": true, "mins": true}
)

// parseDuration reads lengths such as "90 minutes", "1.5 hours", "an hour
// and a half", "one and a half hours" or "half an hour".
func parseDuration(text string) *int {
	var (
		total    float64
		amount   float64
		has      bool // amount holds a number
		article  bool // "a" or "an" seen, meaning one
		tens     bool // amount is a tens word awaiting its units
		afterAnd bool
		lastHour bool // the previous unit was hours
	)
	reset := func() { amount, has, article, tens, afterAnd = 0, false, false, false, false }
	for _, w := range tokens(text) {
		if unicode.IsDigit(rune(w[0])) {
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				amount, has, tens = n, true, false
			}
			continue
		}
		if n, ok := numberWords[w]; ok {
			if has && tens && n < 10 {
				amount += n
				tens = false
			} else {
				amount, has, tens = n, true, n >= 20 && n < 100
			}
			continue
		}
		switch {
		case w == "a" || w == "an":
			article = true
		case w == "of":
		case w == "and":
			afterAnd = true
		case w == "half" || w == "quarter":
			frac := 0.5
			if w == "quarter" {
				frac = 0.25
			}
			switch {
			case has:
				amount += frac
			case afterAnd && lastHour:
				total += frac * 60
				reset()
			default:
				amount, has = frac, true
			}
			article = false
		case hourUnits[w] || minuteUnits[w]:
			n := amount
			if !has {
				if !article {
					reset()
					continue
				}
				n = 1
			}
			if hourUnits[w] {
				total += n * 60
			} else {
				total += n
			}
			lastHour = hourUnits[w]
			reset()
		default:
			reset()
			lastHour = false
		}
	}
	if total <= 0 {
		return nil
	}
	m := int(total + 0.5)
	return &m
}

func parseOrdinal(text string) *int {
	if m := reBareOrdinal.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	if m := reOrdinalNum.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	if m := reOrdinal.FindStringSubmatch(text); m != nil {
		n := ordinals[m[1]]
		return &n
	}
	return nil
}

func parseSignal(text string) models.Signal {
	for _, p := range cancelPhrases {
		if strings.Contains(text, p) {
			return models.SignalCancel
		}
	}
	words := reWord.FindAllString(text, -1)
	for _, p := range denyPhrases {
		if strings.Contains(text, p) {
			return models.SignalDeny
		}
	}
	for _, w := range words {
		if denyWords[w] {
			return models.SignalDeny
		}
	}
	for _, p := range confirmPhrases {
		if strings.Contains(text, p) {
			return models.SignalConfirm
		}
	}
	for _, w := range words {
		if confirmWords[w] {
			return models.SignalConfirm
		}
	}
	return models.SignalNone
}

func parseTitle(utterance string) string {
	if m := reQuoted.FindStringSubmatch(utterance); m != nil {
		return strings.TrimSpace(m[1])
	}
	lower := strings.ToLower(utterance)
	loc := reTitle.FindStringSubmatchIndex(lower)
	if loc == nil {
		return ""
	}
	src := utterance
	if len(lower) != len(utterance) {
		src = lower
	}
	return strings.TrimSpace(strings.Trim(src[loc[2]:loc[3]], ".!? "))
}
