// Package saga contains multi-step business processes that orchestrate
// several domain operations in a coordinated manner.
// Sagas ensure consistency across operations and handle compensation on failures.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seedlinghq/seedling-engine/internal/application/command"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING SAGA
// Business process: registration of a new child profile
// Flow: Validate → Ensure Owner → Create Profile → Initial Suggestions →
//
//	First Weekly Plan
//
// ══════════════════════════════════════════════════════════════════════════════

// Saga errors.
var (
	ErrOwnerEmailRequired = errors.New("onboarding: owner email is required")
	ErrTooManyProfiles    = errors.New("onboarding: owner has reached the profile limit")
)

// OnboardingInput contains all data required to onboard a new child.
type OnboardingInput struct {
	// OwnerID identifies the owning account. Empty means a new owner
	// is created from Email.
	OwnerID shared.OwnerID

	// Email is the owner's email, required when creating a new owner.
	Email string

	// Name is the child's display name (required).
	Name string

	// AgeGroup buckets the child for catalog matching (required).
	AgeGroup shared.AgeGroup

	// Interests are the initial interest topics (optional).
	Interests []string

	// GenerateFirstPlan also builds a plan for the current week, so the
	// dashboard is not empty on first open.
	GenerateFirstPlan bool
}

// Validate checks if the input is valid for onboarding.
func (i OnboardingInput) Validate() error {
	if !i.OwnerID.IsValid() && i.Email == "" {
		return ErrOwnerEmailRequired
	}
	if i.Name == "" {
		return child.ErrInvalidName
	}
	if !i.AgeGroup.IsValid() {
		return child.ErrInvalidAgeGroup
	}
	return nil
}

// OnboardingResult contains the result of a successful onboarding.
type OnboardingResult struct {
	// Child is the newly created profile.
	Child *child.Child

	// Owner is the owning account, created or preexisting.
	Owner *child.Owner

	// SuggestionsCreated is how many initial suggestions were written.
	SuggestionsCreated int

	// PlanID is the first weekly plan, empty when none was requested.
	PlanID string

	// OnboardedAt is the completion timestamp.
	OnboardedAt time.Time
}

// OnboardingStep represents a step in the onboarding process.
type OnboardingStep string

const (
	StepValidateInput      OnboardingStep = "validate_input"
	StepEnsureOwner        OnboardingStep = "ensure_owner"
	StepCreateProfile      OnboardingStep = "create_profile"
	StepInitialSuggestions OnboardingStep = "initial_suggestions"
	StepFirstPlan          OnboardingStep = "first_plan"
	StepComplete           OnboardingStep = "complete"
)

// OnboardingState tracks the current state of the saga.
type OnboardingState struct {
	CurrentStep OnboardingStep
	Input       OnboardingInput
	Owner       *child.Owner
	Child       *child.Child
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       error
	FailedStep  OnboardingStep
}

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// OnboardingSaga orchestrates the registration of a new child profile.
// The initial suggestion refresh and the optional first plan reuse the
// command handlers, so onboarded profiles go through exactly the same
// scoring and assembly paths as existing ones.
type OnboardingSaga struct {
	childRepo child.Repository
	ownerRepo child.OwnerRepository
	refresh   *command.RefreshSuggestionsHandler
	weekly    *command.GenerateWeeklyPlanHandler

	maxProfilesPerOwner int
}

// OnboardingSagaConfig contains configuration for the onboarding saga.
type OnboardingSagaConfig struct {
	// MaxProfilesPerOwner caps profiles per account. Zero means the
	// default of 10.
	MaxProfilesPerOwner int
}

// DefaultOnboardingConfig returns default configuration.
func DefaultOnboardingConfig() OnboardingSagaConfig {
	return OnboardingSagaConfig{
		MaxProfilesPerOwner: 10,
	}
}

// NewOnboardingSaga creates a new onboarding saga with all dependencies.
func NewOnboardingSaga(
	childRepo child.Repository,
	ownerRepo child.OwnerRepository,
	refresh *command.RefreshSuggestionsHandler,
	weekly *command.GenerateWeeklyPlanHandler,
	config OnboardingSagaConfig,
) *OnboardingSaga {
	if config.MaxProfilesPerOwner <= 0 {
		config.MaxProfilesPerOwner = DefaultOnboardingConfig().MaxProfilesPerOwner
	}
	return &OnboardingSaga{
		childRepo:           childRepo,
		ownerRepo:           ownerRepo,
		refresh:             refresh,
		weekly:              weekly,
		maxProfilesPerOwner: config.MaxProfilesPerOwner,
	}
}

// Execute runs the complete onboarding process.
func (s *OnboardingSaga) Execute(ctx context.Context, input OnboardingInput) (*OnboardingResult, error) {
	state := &OnboardingState{
		CurrentStep: StepValidateInput,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Step 1: Validate input
	if err := s.stepValidateInput(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Resolve or create the owner
	state.CurrentStep = StepEnsureOwner
	if err := s.stepEnsureOwner(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Create the child profile
	state.CurrentStep = StepCreateProfile
	if err := s.stepCreateProfile(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Score an initial suggestion set
	state.CurrentStep = StepInitialSuggestions
	created, err := s.stepInitialSuggestions(ctx, state)
	if err != nil {
		// The profile is usable without suggestions; the nightly
		// refresh will retry. Not a rollback case.
		created = 0
	}

	// Step 5: First weekly plan, when requested
	state.CurrentStep = StepFirstPlan
	planID := ""
	if input.GenerateFirstPlan {
		planID, err = s.stepFirstPlan(ctx, state)
		if err != nil {
			s.rollbackProfile(ctx, state)
			return nil, s.wrapError(state, err)
		}
	}

	// Complete
	state.CurrentStep = StepComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	return &OnboardingResult{
		Child:              state.Child,
		Owner:              state.Owner,
		SuggestionsCreated: created,
		PlanID:             planID,
		OnboardedAt:        now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *OnboardingSaga) stepValidateInput(state *OnboardingState) error {
	if err := state.Input.Validate(); err != nil {
		state.FailedStep = StepValidateInput
		state.Error = err
		return err
	}
	return nil
}

// stepEnsureOwner loads the owner, creating the account on first
// contact, and enforces the profile limit.
func (s *OnboardingSaga) stepEnsureOwner(ctx context.Context, state *OnboardingState) error {
	ownerID := state.Input.OwnerID

	if ownerID.IsValid() {
		owner, err := s.ownerRepo.GetByID(ctx, ownerID)
		if err != nil {
			state.FailedStep = StepEnsureOwner
			state.Error = fmt.Errorf("failed to load owner: %w", err)
			return state.Error
		}
		state.Owner = owner
	} else {
		owner := &child.Owner{
			ID:        shared.OwnerID(uuid.NewString()),
			Email:     state.Input.Email,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.ownerRepo.Save(ctx, owner); err != nil {
			state.FailedStep = StepEnsureOwner
			state.Error = fmt.Errorf("failed to create owner: %w", err)
			return state.Error
		}
		state.Owner = owner
	}

	existing, err := s.childRepo.ListByOwner(ctx, state.Owner.ID)
	if err != nil {
		state.FailedStep = StepEnsureOwner
		state.Error = fmt.Errorf("failed to list owner profiles: %w", err)
		return state.Error
	}
	if len(existing) >= s.maxProfilesPerOwner {
		state.FailedStep = StepEnsureOwner
		state.Error = ErrTooManyProfiles
		return state.Error
	}

	return nil
}

func (s *OnboardingSaga) stepCreateProfile(ctx context.Context, state *OnboardingState) error {
	c, err := child.NewChild(
		shared.ChildID(uuid.NewString()),
		state.Owner.ID,
		state.Input.Name,
		state.Input.AgeGroup,
	)
	if err != nil {
		state.FailedStep = StepCreateProfile
		state.Error = err
		return err
	}
	c.Interests = state.Input.Interests

	if err := s.childRepo.Save(ctx, c); err != nil {
		state.FailedStep = StepCreateProfile
		state.Error = fmt.Errorf("failed to save profile: %w", err)
		return state.Error
	}

	state.Child = c
	return nil
}

func (s *OnboardingSaga) stepInitialSuggestions(ctx context.Context, state *OnboardingState) (int, error) {
	res, err := s.refresh.Handle(ctx, command.RefreshSuggestionsCommand{
		ChildID: state.Child.ID,
	})
	if err != nil {
		return 0, err
	}
	return res.Created, nil
}

func (s *OnboardingSaga) stepFirstPlan(ctx context.Context, state *OnboardingState) (string, error) {
	res, err := s.weekly.Handle(ctx, command.GenerateWeeklyPlanCommand{
		ChildID:     state.Child.ID,
		GeneratedBy: "on_demand",
	})
	if err != nil {
		state.FailedStep = StepFirstPlan
		state.Error = fmt.Errorf("failed to build first plan: %w", err)
		return "", state.Error
	}
	return res.Plan.ID, nil
}

// rollbackProfile deactivates the freshly created profile so a half
// onboarded child never enters the batch working set. Saves are
// idempotent, so retrying the saga reactivates it.
func (s *OnboardingSaga) rollbackProfile(ctx context.Context, state *OnboardingState) {
	if state.Child == nil {
		return
	}
	state.Child.Deactivate()
	_ = s.childRepo.Save(ctx, state.Child)
}

func (s *OnboardingSaga) wrapError(state *OnboardingState, err error) error {
	return fmt.Errorf("onboarding failed at step %s: %w", state.CurrentStep, err)
}
