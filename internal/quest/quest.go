// Package quest holds the quest record model and the extractors that recover
// it from the ledger bridge's Candid text output.
package quest

import (
	"fmt"
	"strconv"
	"strings"
)

// PrerequisiteKind distinguishes a field that was never seen from one that was
// explicitly empty.
type PrerequisiteKind int

const (
	PrerequisiteAbsent PrerequisiteKind = iota
	PrerequisiteNone
	PrerequisiteQuest
)

type Prerequisite struct {
	Kind    PrerequisiteKind
	QuestID uint64
}

func (p Prerequisite) String() string {
	switch p.Kind {
	case PrerequisiteQuest:
		return fmt.Sprintf("Quest #%d", p.QuestID)
	default:
		return "None"
	}
}

// Quest is one learning quest. Pointer fields are nil when the field could not
// be recovered from the text. Raw always holds the text the record came from.
type Quest struct {
	ID           *uint64
	Title        *string
	Description  *string
	Link         *string
	RewardAmount *uint64
	Prerequisite Prerequisite
	Raw          string
}

// Usable reports whether the record has at least a title.
func (q Quest) Usable() bool {
	return q.Title != nil
}

// Unparsed reports whether no field at all was recovered, i.e. the record is
// only a carrier for Raw.
func (q Quest) Unparsed() bool {
	return q.ID == nil &&
		q.Title == nil &&
		q.Description == nil &&
		q.Link == nil &&
		q.RewardAmount == nil &&
		q.Prerequisite.Kind == PrerequisiteAbsent
}

func (q Quest) TitleOr(fallback string) string {
	return stringOr(q.Title, fallback)
}

func (q Quest) DescriptionOr(fallback string) string {
	return stringOr(q.Description, fallback)
}

func (q Quest) LinkOr(fallback string) string {
	return stringOr(q.Link, fallback)
}

func (q Quest) RewardOr(fallback string) string {
	if q.RewardAmount == nil {
		return fallback
	}
	return strconv.FormatUint(*q.RewardAmount, 10)
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

// Block renders the quest as the short human-readable context block handed to
// the completion model.
func (q Quest) Block() string {
	var b strings.Builder
	b.WriteString("Current available quest:\n")
	b.WriteString("- Title: " + q.TitleOr("Untitled quest") + "\n")
	b.WriteString("- Description: " + q.DescriptionOr("No description provided") + "\n")
	b.WriteString("- Reward: " + q.RewardOr("Unknown") + " tokens\n")
	b.WriteString("- Link: " + q.LinkOr("No link provided") + "\n")
	b.WriteString("- Prerequisite: " + q.Prerequisite.String())
	return b.String()
}
