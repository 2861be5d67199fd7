package quest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }
func str(v string) *string { return &v }

func TestParseQuestConcreteRecord(t *testing.T) {
	raw := `id = 3; title = "Intro to ICP"; rewardAmount = 50; prerequisite = null`

	q, ok := ParseQuest(raw)

	require.True(t, ok)
	assert.Equal(t, u64(3), q.ID)
	assert.Equal(t, str("Intro to ICP"), q.Title)
	assert.Equal(t, u64(50), q.RewardAmount)
	assert.Equal(t, Prerequisite{Kind: PrerequisiteNone}, q.Prerequisite)
	assert.Nil(t, q.Description)
	assert.Nil(t, q.Link)
	assert.True(t, q.Usable())
	assert.False(t, q.Unparsed())
	assert.Equal(t, raw, q.Raw)
}

func TestParseQuestFromDfxOutput(t *testing.T) {
	raw := `(
  opt record {
    id = 2 : nat;
    title = "Motoko Basics";
    rewardAmount = 1_000 : nat;
    link = "https://internetcomputer.org/docs/motoko";
    description = "Learn the actor model.";
    prerequisite = opt (1 : nat);
  },
)`

	q, ok := ParseQuest(raw)

	require.True(t, ok)
	assert.Equal(t, u64(2), q.ID)
	assert.Equal(t, str("Motoko Basics"), q.Title)
	assert.Equal(t, u64(1000), q.RewardAmount)
	assert.Equal(t, str("https://internetcomputer.org/docs/motoko"), q.Link)
	assert.Equal(t, str("Learn the actor model."), q.Description)
	assert.Equal(t, Prerequisite{Kind: PrerequisiteQuest, QuestID: 1}, q.Prerequisite)
}

func TestParseQuestAbsenceMarker(t *testing.T) {
	cases := []string{
		`null`,
		`(null)`,
		"  (null)\n",
		`(null) title = "Ignored"; id = 4`,
		`opt record { id = 1 } null`,
	}
	for _, raw := range cases {
		_, ok := ParseQuest(raw)
		assert.False(t, ok, "ParseQuest(%q) should report no quest", raw)
	}
}

func TestParseQuestNullInsideValuesIsNotAbsence(t *testing.T) {
	q, ok := ParseQuest(`title = "null pointers 101"; prerequisite = null`)

	require.True(t, ok)
	assert.Equal(t, str("null pointers 101"), q.Title)
}

func TestParseQuestTitleIsExactQuotedContent(t *testing.T) {
	for _, title := range []string{"X", "  padded title  ", "", "Tabs\tand = signs; ok"} {
		q, ok := ParseQuest(`record { title = "` + title + `" }`)
		require.True(t, ok)
		require.NotNil(t, q.Title)
		assert.Equal(t, title, *q.Title)
	}
}

func TestParseQuestTextWithEscapedQuotes(t *testing.T) {
	raw := `title = "a \"null\" b"; description = "line\none \\ two"; link = "x"`

	q, ok := ParseQuest(raw)

	require.True(t, ok)
	assert.Equal(t, str(`a "null" b`), q.Title)
	assert.Equal(t, str("line\none \\ two"), q.Description)
	assert.Equal(t, str("x"), q.Link)
}

func TestParseQuestRawFallbackRoundTrips(t *testing.T) {
	for _, raw := range []string{"", "42", `("hello")`, "something unexpected\nwith lines"} {
		q, ok := ParseQuest(raw)
		require.True(t, ok)
		assert.True(t, q.Unparsed(), "ParseQuest(%q) should be unparsed", raw)
		assert.False(t, q.Usable())
		assert.Equal(t, raw, q.Raw)
	}
}

func TestParseQuestLeftmostOccurrenceWins(t *testing.T) {
	q, ok := ParseQuest(`id = 7; title = "First"; id = 9; title = "Second"; rewardAmount = 1; rewardAmount = 2`)

	require.True(t, ok)
	assert.Equal(t, u64(7), q.ID)
	assert.Equal(t, str("First"), q.Title)
	assert.Equal(t, u64(1), q.RewardAmount)
}

func TestParseQuestMalformedFieldsAreOmitted(t *testing.T) {
	q, ok := ParseQuest(`id = abc; title = "Kept"; rewardAmount = 99999999999999999999999; link = unquoted`)

	require.True(t, ok)
	assert.Nil(t, q.ID)
	assert.Nil(t, q.RewardAmount)
	assert.Nil(t, q.Link)
	assert.Equal(t, str("Kept"), q.Title)
}

func TestParseQuestRecordWithoutTitleIsNotUsable(t *testing.T) {
	q, ok := ParseQuest(`id = 5; rewardAmount = 10`)

	require.True(t, ok)
	assert.False(t, q.Usable())
	assert.False(t, q.Unparsed())
	assert.Equal(t, `id = 5; rewardAmount = 10`, q.Raw)
}

func TestFieldExtractorsAreIndependent(t *testing.T) {
	cases := map[string]struct {
		raw    string
		verify func(t *testing.T, q Quest)
	}{
		"id": {`id = 12`, func(t *testing.T, q Quest) { assert.Equal(t, u64(12), q.ID) }},
		"title": {`title = "T"`, func(t *testing.T, q Quest) { assert.Equal(t, str("T"), q.Title) }},
		"description": {`description = "D"`, func(t *testing.T, q Quest) { assert.Equal(t, str("D"), q.Description) }},
		"link": {`link = "L"`, func(t *testing.T, q Quest) { assert.Equal(t, str("L"), q.Link) }},
		"rewardAmount": {`rewardAmount = 8`, func(t *testing.T, q Quest) { assert.Equal(t, u64(8), q.RewardAmount) }},
		"prerequisite": {`prerequisite = ?4`, func(t *testing.T, q Quest) {
			assert.Equal(t, Prerequisite{Kind: PrerequisiteQuest, QuestID: 4}, q.Prerequisite)
		}},
	}
	require.Len(t, cases, len(fields))

	for _, f := range fields {
		tc, ok := cases[f.name]
		require.True(t, ok, "missing case for field %s", f.name)
		t.Run(f.name, func(t *testing.T) {
			var q Quest
			require.True(t, f.extract(tc.raw, &q))
			tc.verify(t, q)

			var empty Quest
			assert.False(t, f.extract("nothing here", &empty))
			assert.True(t, empty.Unparsed())
		})
	}
}

func TestPrerequisiteForms(t *testing.T) {
	cases := []struct {
		raw  string
		want Prerequisite
	}{
		{`prerequisite = null`, Prerequisite{Kind: PrerequisiteNone}},
		{`prerequisite = ?3`, Prerequisite{Kind: PrerequisiteQuest, QuestID: 3}},
		{`prerequisite = opt 3`, Prerequisite{Kind: PrerequisiteQuest, QuestID: 3}},
		{`prerequisite = opt (3 : nat)`, Prerequisite{Kind: PrerequisiteQuest, QuestID: 3}},
		{`prerequisite = maybe`, Prerequisite{}},
	}
	for _, tc := range cases {
		var q Quest
		extractPrerequisite(tc.raw, &q)
		assert.Equal(t, tc.want, q.Prerequisite, tc.raw)
	}
}

func TestParseQuestSummaryWrapsVerbatim(t *testing.T) {
	raw := "(vec { record { id = 1 } })"
	assert.Equal(t, "All available quests in LearnSphere: "+raw, ParseQuestSummary(raw))
}

func TestParseNat(t *testing.T) {
	cases := []struct {
		raw  string
		want uint64
		ok   bool
	}{
		{"(5 : nat)", 5, true},
		{"5", 5, true},
		{"(1_024 : nat64)", 1024, true},
		{"(\"five\")", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNat(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestBlockUsesFallbacksForMissingFields(t *testing.T) {
	q, ok := ParseQuest(`id = 3; title = "Intro to ICP"; rewardAmount = 50; prerequisite = null`)
	require.True(t, ok)

	want := "Current available quest:\n" +
		"- Title: Intro to ICP\n" +
		"- Description: No description provided\n" +
		"- Reward: 50 tokens\n" +
		"- Link: No link provided\n" +
		"- Prerequisite: None"
	assert.Equal(t, want, q.Block())
}
