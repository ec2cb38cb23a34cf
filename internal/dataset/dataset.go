// Package dataset loads the read-only member, plan and claims data.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ashureev/care-assistant/internal/domain"
)

// File names expected in the dataset filesystem.
const (
	UsersFile  = "user_profiles.json"
	PlansFile  = "insurance_plans.json"
	ClaimsFile = "claims_data.json"
)

// ErrInvalid is returned when the dataset is internally inconsistent.
var ErrInvalid = errors.New("invalid dataset")

// Dataset is an immutable in-memory view of the mock insurance data.
type Dataset struct {
	users  []domain.UserProfile
	plans  map[string]domain.Plan
	claims []domain.Claim

	userIndex map[string]int
}

type usersDoc struct {
	Users []domain.UserProfile `json:"users"`
}

type plansDoc struct {
	Plans []domain.Plan `json:"plans"`
}

type claimsDoc struct {
	Claims []domain.Claim `json:"claims"`
}

// Load reads and validates the three dataset documents from fsys.
func Load(fsys fs.FS) (*Dataset, error) {
	var u usersDoc
	if err := readJSON(fsys, UsersFile, &u); err != nil {
		return nil, err
	}
	var p plansDoc
	if err := readJSON(fsys, PlansFile, &p); err != nil {
		return nil, err
	}
	var c claimsDoc
	if err := readJSON(fsys, ClaimsFile, &c); err != nil {
		return nil, err
	}

	d := &Dataset{
		users:     u.Users,
		plans:     make(map[string]domain.Plan, len(p.Plans)),
		claims:    c.Claims,
		userIndex: make(map[string]int, len(u.Users)),
	}

	for _, plan := range p.Plans {
		if plan.PlanID == "" {
			return nil, fmt.Errorf("%w: plan with empty plan_id", ErrInvalid)
		}
		if _, dup := d.plans[plan.PlanID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalid, plan.PlanID)
		}
		d.plans[plan.PlanID] = plan
	}
	for i, user := range d.users {
		if user.UserID == "" {
			return nil, fmt.Errorf("%w: user at index %d has empty user_id", ErrInvalid, i)
		}
		if _, dup := d.userIndex[user.UserID]; dup {
			return nil, fmt.Errorf("%w: duplicate user %q", ErrInvalid, user.UserID)
		}
		if _, ok := d.plans[user.PlanID]; !ok {
			return nil, fmt.Errorf("%w: user %q references unknown plan %q", ErrInvalid, user.UserID, user.PlanID)
		}
		d.userIndex[user.UserID] = i
	}
	for _, claim := range d.claims {
		if _, ok := d.userIndex[claim.UserID]; !ok {
			return nil, fmt.Errorf("%w: claim %q references unknown user %q", ErrInvalid, claim.ClaimID, claim.UserID)
		}
	}

	return d, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// UserByID returns a copy of the user with the given id.
func (d *Dataset) UserByID(userID string) (*domain.UserProfile, bool) {
	i, ok := d.userIndex[userID]
	if !ok {
		return nil, false
	}
	u := d.users[i]
	return &u, true
}

// UserByName matches name case-insensitively against each user's first
// name or full name. The first match in dataset order wins.
func (d *Dataset) UserByName(name string) (*domain.UserProfile, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return nil, false
	}
	for _, user := range d.users {
		full := strings.ToLower(strings.TrimSpace(user.Name))
		first := strings.ToLower(user.FirstName())
		if want == full || want == first {
			u := user
			return &u, true
		}
	}
	return nil, false
}

// PlanByID returns the plan with the given id.
func (d *Dataset) PlanByID(planID string) (*domain.Plan, bool) {
	p, ok := d.plans[planID]
	if !ok {
		return nil, false
	}
	return &p, true
}

// ClaimsForUser returns the user's claims in dataset order.
func (d *Dataset) ClaimsForUser(userID string) []domain.Claim {
	var out []domain.Claim
	for _, c := range d.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// UserWithPlan returns the user's profile with its plan embedded.
func (d *Dataset) UserWithPlan(userID string) (*domain.UserWithPlan, bool) {
	u, ok := d.UserByID(userID)
	if !ok {
		return nil, false
	}
	p, _ := d.PlanByID(u.PlanID)
	return &domain.UserWithPlan{UserProfile: *u, Plan: p}, true
}

// Stats reports record counts for health output.
func (d *Dataset) Stats() map[string]int {
	return map[string]int{
		"users":  len(d.users),
		"plans":  len(d.plans),
		"claims": len(d.claims),
	}
}
