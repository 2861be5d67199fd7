package quest

import (
	"regexp"
	"strconv"
	"strings"
)

// SummaryPrefix introduces the unparsed all-quests listing.
const SummaryPrefix = "All available quests in LearnSphere: "

var (
	nullToken = regexp.MustCompile(`\bnull\b`)
	natReply  = regexp.MustCompile(`^\(?\s*([0-9][0-9_]*)\s*(?::\s*nat(?:64|32|16|8)?\s*)?\)?$`)
)

// field recovers one value from raw into q and reports whether it did.
type field struct {
	name    string
	extract func(raw string, q *Quest) bool
}

// fields are applied independently; a miss on one never affects the others.
var fields = []field{
	{name: "id", extract: natField("id", func(q *Quest, v uint64) { q.ID = &v })},
	{name: "title", extract: textField("title", func(q *Quest, v string) { q.Title = &v })},
	{name: "description", extract: textField("description", func(q *Quest, v string) { q.Description = &v })},
	{name: "link", extract: textField("link", func(q *Quest, v string) { q.Link = &v })},
	{name: "rewardAmount", extract: natField("rewardAmount", func(q *Quest, v uint64) { q.RewardAmount = &v })},
	{name: "prerequisite", extract: extractPrerequisite},
}

// ParseQuest recovers a Quest from raw bridge output. It returns false when the
// output says there is no quest. It never fails: text without any recognizable
// field comes back as an Unparsed record carrying raw verbatim.
func ParseQuest(raw string) (Quest, bool) {
	if HasAbsenceMarker(raw) {
		return Quest{}, false
	}
	q := Quest{Raw: raw}
	for _, f := range fields {
		f.extract(raw, &q)
	}
	return q, true
}

// ParseQuestSummary wraps the all-quests listing without interpreting it; the
// collection format is not position-stable enough to parse.
func ParseQuestSummary(raw string) string {
	return SummaryPrefix + raw
}

// ParseNat reads a bare numeral reply such as "(5 : nat)".
func ParseNat(raw string) (uint64, bool) {
	m := natReply.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, false
	}
	return parseNat(m[1])
}

// HasAbsenceMarker reports whether raw contains a null token that stands for
// the whole reply rather than for a field value (`prerequisite = null`) or
// quoted text.
func HasAbsenceMarker(raw string) bool {
	for _, loc := range nullToken.FindAllStringIndex(raw, -1) {
		if insideQuotes(raw, loc[0]) {
			continue
		}
		if precededByAssignment(raw, loc[0]) {
			continue
		}
		return true
	}
	return false
}

func precededByAssignment(raw string, idx int) bool {
	prev := strings.TrimRight(raw[:idx], " \t\r\n")
	return strings.HasSuffix(prev, "=")
}

func insideQuotes(raw string, idx int) bool {
	in := false
	escaped := false
	for i := 0; i < idx; i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = in
		case '"':
			in = !in
		}
	}
	return in
}

func natField(key string, set func(*Quest, uint64)) func(string, *Quest) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\s*=\s*([0-9][0-9_]*)`)
	return func(raw string, q *Quest) bool {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return false
		}
		v, ok := parseNat(m[1])
		if !ok {
			return false
		}
		set(q, v)
		return true
	}
}

func textField(key string, set func(*Quest, string)) func(string, *Quest) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\s*=\s*"((?:[^"\\]|\\.)*)"`)
	return func(raw string, q *Quest) bool {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return false
		}
		set(q, unescapeText(m[1]))
		return true
	}
}

// unescapeText resolves the simple escapes of a Candid text literal. Unknown
// sequences are kept as written.
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '"', '\'', '\\':
			b.WriteByte(s[i])
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

var prerequisitePattern = regexp.MustCompile(`\bprerequisite\s*=\s*(?:(null)|(?:\?|opt\s*\(?)\s*([0-9][0-9_]*))`)

func extractPrerequisite(raw string, q *Quest) bool {
	m := prerequisitePattern.FindStringSubmatch(raw)
	if m == nil {
		return false
	}
	if m[1] == "null" {
		q.Prerequisite = Prerequisite{Kind: PrerequisiteNone}
		return true
	}
	v, ok := parseNat(m[2])
	if !ok {
		return false
	}
	q.Prerequisite = Prerequisite{Kind: PrerequisiteQuest, QuestID: v}
	return true
}

// parseNat accepts Candid digit separators ("1_000").
func parseNat(s string) (uint64, bool) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
