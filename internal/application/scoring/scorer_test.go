package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testChild(interests ...string) *child.Child {
	return &child.Child{
		ID:        "child1",
		AgeGroup:  "3-4",
		Interests: interests,
		Active:    true,
	}
}

func testActivity(skills ...shared.SkillID) *catalog.Activity {
	return &catalog.Activity{
		ID:              "a1",
		Name:            "Pouring water",
		Area:            "practical life",
		Difficulty:      catalog.DifficultyIntermediate,
		SkillsAddressed: skills,
		Status:          catalog.ActivityStatusActive,
	}
}

func statusOf(st skill.Status) *skill.ChildSkillStatus {
	return &skill.ChildSkillStatus{Status: st}
}

func TestScore_NothingGoingForIt(t *testing.T) {
	// No skills addressed, no interests, never completed: base + novelty.
	a := testActivity()
	res := Score(Input{Child: testChild(), Activity: a, Now: testNow})

	assert.Equal(t, BaseScore+NoveltyBonus, res.Score)
	assert.Equal(t, []string{ReasonNovelty}, res.Reasons)
	assert.True(t, res.Eligible())
}

func TestScore_ExactlyThresholdIsNotEligible(t *testing.T) {
	// A previously-completed activity with nothing else sits at base.
	a := testActivity()
	hist := progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -40)}

	res := Score(Input{Child: testChild(), Activity: a, History: hist, Now: testNow})

	assert.Equal(t, BaseScore, res.Score)
	assert.False(t, res.Eligible())
}

func TestScore_SkillBonuses(t *testing.T) {
	statuses := map[shared.SkillID]*skill.ChildSkillStatus{
		"s-dev":  statusOf(skill.StatusDeveloping),
		"s-done": statusOf(skill.StatusMastered),
	}
	// s-new is untracked: counts as a new skill.
	a := testActivity("s-new", "s-dev", "s-done")
	hist := progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -40)}

	res := Score(Input{Child: testChild(), Activity: a, SkillStatuses: statuses, History: hist, Now: testNow})

	// 3 + 2 + 0.5 = 5.5, clamped to the cap.
	assert.Equal(t, BaseScore+SkillBonusCap, res.Score)
	assert.Contains(t, res.Reasons, ReasonNewSkill)
	assert.Contains(t, res.Reasons, ReasonReinforces)
	assert.Contains(t, res.Reasons, ReasonMaintenance)
}

func TestScore_EmergingCountsAsNewSkill(t *testing.T) {
	statuses := map[shared.SkillID]*skill.ChildSkillStatus{
		"s1": statusOf(skill.StatusEmerging),
	}
	a := testActivity("s1")
	a.Difficulty = catalog.DifficultyAdvanced // no alignment
	hist := progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -40)}

	res := Score(Input{Child: testChild(), Activity: a, SkillStatuses: statuses, History: hist, Now: testNow})

	assert.Equal(t, BaseScore+NewSkillBonus, res.Score)
}

func TestScore_InterestMatches(t *testing.T) {
	a := testActivity()
	a.Area = "music and movement"
	hist := progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -40)}

	res := Score(Input{Child: testChild("Music", "movement", "animals"), Activity: a, History: hist, Now: testNow})

	// Two distinct matched interests.
	assert.Equal(t, BaseScore+2*InterestBonus, res.Score)
	assert.Contains(t, res.Reasons, ReasonInterest("Music"))
	assert.Contains(t, res.Reasons, ReasonInterest("movement"))
}

func TestScore_RecentCompletionPenalty(t *testing.T) {
	a := testActivity()
	hist := progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -3)}

	res := Score(Input{Child: testChild(), Activity: a, History: hist, Now: testNow})

	assert.Equal(t, BaseScore+RecentPenalty, res.Score)
	assert.Contains(t, res.Reasons, ReasonTooSoon)
}

func TestScore_ReEngageWindow(t *testing.T) {
	a := testActivity()

	engaged := progress.ActivityHistory{
		CompletionCount:    1,
		LastCompletedAt:    testNow.AddDate(0, 0, -14),
		LastHighEngagement: true,
	}
	res := Score(Input{Child: testChild(), Activity: a, History: engaged, Now: testNow})
	assert.Equal(t, BaseScore+ReEngageBonus, res.Score)
	assert.Contains(t, res.Reasons, ReasonReEngage)

	// Same window without high engagement earns nothing.
	flat := engaged
	flat.LastHighEngagement = false
	res = Score(Input{Child: testChild(), Activity: a, History: flat, Now: testNow})
	assert.Equal(t, BaseScore, res.Score)
}

func TestScore_OverexposureStacksWithRecency(t *testing.T) {
	a := testActivity()
	hist := progress.ActivityHistory{CompletionCount: 5, LastCompletedAt: testNow.AddDate(0, 0, -2)}

	res := Score(Input{Child: testChild(), Activity: a, History: hist, Now: testNow})

	assert.Equal(t, BaseScore+RecentPenalty+OverexposedPenalty, res.Score)
	assert.Contains(t, res.Reasons, ReasonTooSoon)
	assert.Contains(t, res.Reasons, ReasonOverexposed)
}

func TestScore_ExactlyThreeCompletionsIsNotOverexposed(t *testing.T) {
	a := testActivity()
	hist := progress.ActivityHistory{CompletionCount: 3, LastCompletedAt: testNow.AddDate(0, 0, -40)}

	res := Score(Input{Child: testChild(), Activity: a, History: hist, Now: testNow})

	assert.NotContains(t, res.Reasons, ReasonOverexposed)
}

func TestScore_DifficultyAlignment(t *testing.T) {
	cases := []struct {
		name       string
		difficulty catalog.Difficulty
		status     *skill.ChildSkillStatus // nil = untracked
		aligned    bool
	}{
		{"beginner with untracked skill", catalog.DifficultyBeginner, nil, true},
		{"beginner with emerging skill", catalog.DifficultyBeginner, statusOf(skill.StatusEmerging), true},
		{"beginner with developing skill", catalog.DifficultyBeginner, statusOf(skill.StatusDeveloping), false},
		{"intermediate with developing skill", catalog.DifficultyIntermediate, statusOf(skill.StatusDeveloping), true},
		{"intermediate with mastered skill", catalog.DifficultyIntermediate, statusOf(skill.StatusMastered), false},
		{"advanced with mastered skill", catalog.DifficultyAdvanced, statusOf(skill.StatusMastered), true},
		{"advanced with emerging skill", catalog.DifficultyAdvanced, statusOf(skill.StatusEmerging), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := testActivity("s1")
			a.Difficulty = tc.difficulty
			statuses := map[shared.SkillID]*skill.ChildSkillStatus{}
			if tc.status != nil {
				statuses["s1"] = tc.status
			}

			res := Score(Input{Child: testChild(), Activity: a, SkillStatuses: statuses,
				History: progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -40)},
				Now:     testNow})

			if tc.aligned {
				assert.Contains(t, res.Reasons, ReasonAlignment)
			} else {
				assert.NotContains(t, res.Reasons, ReasonAlignment)
			}
		})
	}
}

func TestScore_DifficultyAlignmentAnyMatchingSkill(t *testing.T) {
	cases := []struct {
		name       string
		difficulty catalog.Difficulty
		s1, s2     *skill.ChildSkillStatus // nil = untracked
		aligned    bool
	}{
		{"beginner: emerging beside mastered", catalog.DifficultyBeginner, statusOf(skill.StatusEmerging), statusOf(skill.StatusMastered), true},
		{"beginner: untracked beside developing", catalog.DifficultyBeginner, nil, statusOf(skill.StatusDeveloping), true},
		{"beginner: all past emerging", catalog.DifficultyBeginner, statusOf(skill.StatusDeveloping), statusOf(skill.StatusMastered), false},
		{"intermediate: developing beside mastered", catalog.DifficultyIntermediate, statusOf(skill.StatusDeveloping), statusOf(skill.StatusMastered), true},
		{"advanced: mastered beside emerging", catalog.DifficultyAdvanced, statusOf(skill.StatusEmerging), statusOf(skill.StatusMastered), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := testActivity("s1", "s2")
			a.Difficulty = tc.difficulty
			statuses := map[shared.SkillID]*skill.ChildSkillStatus{}
			if tc.s1 != nil {
				statuses["s1"] = tc.s1
			}
			if tc.s2 != nil {
				statuses["s2"] = tc.s2
			}

			res := Score(Input{Child: testChild(), Activity: a, SkillStatuses: statuses,
				History: progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -40)},
				Now:     testNow})

			if tc.aligned {
				assert.Contains(t, res.Reasons, ReasonAlignment)
			} else {
				assert.NotContains(t, res.Reasons, ReasonAlignment)
			}
		})
	}
}

func TestRankEligible(t *testing.T) {
	c := testChild("animal")
	statuses := map[shared.SkillID]*skill.ChildSkillStatus{
		"s1": statusOf(skill.StatusDeveloping),
	}
	oldCompletion := progress.ActivityHistory{CompletionCount: 1, LastCompletedAt: testNow.AddDate(0, 0, -60)}

	strong := &catalog.Activity{ID: "a-strong", Area: "animal care", Difficulty: catalog.DifficultyIntermediate,
		SkillsAddressed: []shared.SkillID{"s1"}, Status: catalog.ActivityStatusActive}
	weak := &catalog.Activity{ID: "a-weak", Area: "geometry", Difficulty: catalog.DifficultyAdvanced,
		Status: catalog.ActivityStatusActive}

	ranked := RankEligible(c, []*catalog.Activity{weak, strong},
		statuses,
		map[shared.ActivityID]progress.ActivityHistory{"a-strong": oldCompletion, "a-weak": oldCompletion},
		testNow)

	// weak scores exactly base and is excluded; strong leads.
	require.Len(t, ranked, 1)
	assert.Equal(t, shared.ActivityID("a-strong"), ranked[0].Activity.ID)
	// +2 developing skill, +2 interest, +1 alignment.
	assert.Equal(t, BaseScore+DevelopingBonus+InterestBonus+AlignmentBonus, ranked[0].Result.Score)
}

func TestRankEligible_TiesBreakByID(t *testing.T) {
	c := testChild()
	a1 := &catalog.Activity{ID: "a1", Difficulty: catalog.DifficultyBeginner, Status: catalog.ActivityStatusActive}
	a2 := &catalog.Activity{ID: "a2", Difficulty: catalog.DifficultyBeginner, Status: catalog.ActivityStatusActive}

	// Both score base + novelty.
	ranked := RankEligible(c, []*catalog.Activity{a2, a1}, nil, nil, testNow)

	require.Len(t, ranked, 2)
	assert.Equal(t, shared.ActivityID("a1"), ranked[0].Activity.ID)
	assert.Equal(t, shared.ActivityID("a2"), ranked[1].Activity.ID)
}
