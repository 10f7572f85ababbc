// Package scoring implements the activity scoring model: a pure
// function from a child's current state to a score and the reasons
// behind it. Both the batch refresh and on-demand planning rank
// candidates with the same scorer, so the two paths never disagree
// about what an activity is worth.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
)

// Scoring model constants. An activity earns the base score for merely
// existing; everything on top has to be justified by the child's state.
const (
	// BaseScore is the starting score for every candidate.
	BaseScore = 5.0

	// EligibilityThreshold is the score a candidate must strictly
	// exceed to be recommended. A base-score activity with nothing
	// going for it is never suggested.
	EligibilityThreshold = 5.0

	// Skill-development bonuses per addressed skill.
	NewSkillBonus       = 3.0 // skill unknown, not started, or emerging
	DevelopingBonus     = 2.0 // reinforces a developing skill
	MaintenanceBonus    = 0.5 // keeps a mastered skill warm
	SkillBonusCap       = 5.0 // total skill bonus is clamped here

	// InterestBonus applies per distinct matched interest.
	InterestBonus = 2.0

	// History adjustments.
	RecentPenalty     = -2.0 // completed under 7 days ago
	ReEngageBonus     = 2.0  // completed 8-30 days ago with high engagement
	OverexposedPenalty = -1.0 // completed more than 3 times
	NoveltyBonus      = 1.0  // never completed

	// AlignmentBonus applies when difficulty suits the skill level.
	AlignmentBonus = 1.0

	// History window boundaries, in days.
	recentWindowDays   = 7
	reEngageMinDays    = 8
	reEngageMaxDays    = 30
	overexposureCount  = 3
)

// Reason codes attached to scores. Stored on suggestions and audit
// logs, shown to owners, so they read as sentences.
const (
	ReasonNewSkill    = "develops a new or emerging skill"
	ReasonReinforces  = "reinforces a developing skill"
	ReasonMaintenance = "maintains a mastered skill"
	ReasonTooSoon     = "completed very recently"
	ReasonReEngage    = "was a hit a few weeks ago"
	ReasonOverexposed = "completed many times already"
	ReasonNovelty     = "never tried before"
	ReasonAlignment   = "difficulty suits current level"
)

// ReasonInterest renders the per-interest reason code.
func ReasonInterest(interest string) string {
	return fmt.Sprintf("matches interest: %s", interest)
}

// Input carries everything the scorer looks at. It holds no
// repositories; callers assemble the state up front.
type Input struct {
	Child    *child.Child
	Activity *catalog.Activity

	// SkillStatuses is the child's tracked statuses keyed by skill ID.
	// Skills with no entry are treated as never observed.
	SkillStatuses map[shared.SkillID]*skill.ChildSkillStatus

	// History is the folded ledger digest for this activity. The zero
	// value means the child never completed it.
	History progress.ActivityHistory

	// Now anchors the history windows.
	Now time.Time
}

// Result is the scored outcome for one candidate.
type Result struct {
	Score   float64
	Reasons []string
}

// Eligible reports whether the candidate cleared the threshold.
func (r Result) Eligible() bool {
	return r.Score > EligibilityThreshold
}

// Score evaluates one activity for one child.
func Score(in Input) Result {
	score := BaseScore
	var reasons []string

	skillBonus, skillReasons := scoreSkills(in)
	score += skillBonus
	reasons = append(reasons, skillReasons...)

	for _, interest := range in.Child.MatchingInterests(in.Activity.Area) {
		score += InterestBonus
		reasons = append(reasons, ReasonInterest(interest))
	}

	historyDelta, historyReasons := scoreHistory(in.History, in.Now)
	score += historyDelta
	reasons = append(reasons, historyReasons...)

	if difficultyAligned(in.Activity.Difficulty, in.Activity.SkillsAddressed, in.SkillStatuses) {
		score += AlignmentBonus
		reasons = append(reasons, ReasonAlignment)
	}

	return Result{Score: score, Reasons: reasons}
}

// scoreSkills sums the per-skill development bonuses, clamped at the
// cap so skill-dense activities do not drown out everything else.
func scoreSkills(in Input) (float64, []string) {
	bonus := 0.0
	var reasons []string
	sawNew, sawDeveloping, sawMastered := false, false, false

	for _, skillID := range in.Activity.SkillsAddressed {
		status, tracked := in.SkillStatuses[skillID]
		switch {
		case !tracked || status.Status == skill.StatusNotStarted || status.Status == skill.StatusEmerging:
			bonus += NewSkillBonus
			sawNew = true
		case status.Status == skill.StatusDeveloping:
			bonus += DevelopingBonus
			sawDeveloping = true
		case status.Status == skill.StatusMastered:
			bonus += MaintenanceBonus
			sawMastered = true
		}
	}

	if bonus > SkillBonusCap {
		bonus = SkillBonusCap
	}
	if sawNew {
		reasons = append(reasons, ReasonNewSkill)
	}
	if sawDeveloping {
		reasons = append(reasons, ReasonReinforces)
	}
	if sawMastered {
		reasons = append(reasons, ReasonMaintenance)
	}
	return bonus, reasons
}

// scoreHistory applies the completion-history adjustments. The windows
// stack: an activity done five times, last of them yesterday, takes
// both the recency and the overexposure hit.
func scoreHistory(h progress.ActivityHistory, now time.Time) (float64, []string) {
	if h.CompletionCount == 0 {
		return NoveltyBonus, []string{ReasonNovelty}
	}

	delta := 0.0
	var reasons []string

	days := int(now.Sub(h.LastCompletedAt).Hours() / 24)
	switch {
	case days < recentWindowDays:
		delta += RecentPenalty
		reasons = append(reasons, ReasonTooSoon)
	case days >= reEngageMinDays && days <= reEngageMaxDays && h.LastHighEngagement:
		delta += ReEngageBonus
		reasons = append(reasons, ReasonReEngage)
	}

	if h.CompletionCount > overexposureCount {
		delta += OverexposedPenalty
		reasons = append(reasons, ReasonOverexposed)
	}
	return delta, reasons
}

// difficultyAligned reports whether any addressed skill sits at the
// level the activity difficulty targets: beginner for untouched or
// emerging skills, intermediate for developing, advanced for mastered.
// One matching skill is enough even when the rest are further along.
func difficultyAligned(d catalog.Difficulty, addressed []shared.SkillID, statuses map[shared.SkillID]*skill.ChildSkillStatus) bool {
	for _, id := range addressed {
		s, ok := statuses[id]
		switch d {
		case catalog.DifficultyBeginner:
			if !ok || s.Status == skill.StatusNotStarted || s.Status == skill.StatusEmerging {
				return true
			}
		case catalog.DifficultyIntermediate:
			if ok && s.Status == skill.StatusDeveloping {
				return true
			}
		case catalog.DifficultyAdvanced:
			if ok && s.Status == skill.StatusMastered {
				return true
			}
		}
	}
	return false
}

// Candidate pairs an activity with its score for ranking.
type Candidate struct {
	Activity *catalog.Activity
	Result   Result
}

// RankEligible scores every candidate activity and returns the eligible
// ones sorted by score descending. Ties break by activity ID so runs
// are deterministic.
func RankEligible(c *child.Child, activities []*catalog.Activity, statuses map[shared.SkillID]*skill.ChildSkillStatus, history map[shared.ActivityID]progress.ActivityHistory, now time.Time) []Candidate {
	var out []Candidate
	for _, a := range activities {
		res := Score(Input{
			Child:         c,
			Activity:      a,
			SkillStatuses: statuses,
			History:       history[a.ID],
			Now:           now,
		})
		if res.Eligible() {
			out = append(out, Candidate{Activity: a, Result: res})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Result.Score != out[j].Result.Score {
			return out[i].Result.Score > out[j].Result.Score
		}
		return out[i].Activity.ID < out[j].Activity.ID
	})
	return out
}
