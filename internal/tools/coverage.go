package tools

import (
	"fmt"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/shopspring/decimal"
)

// CoverageData is the plan and spending summary for a member.
type CoverageData struct {
	PlanName             string                            `json:"plan_name"`
	PlanType             string                            `json:"plan_type"`
	MonthlyPremium       decimal.Decimal                   `json:"monthly_premium"`
	DeductibleAnnual     decimal.Decimal                   `json:"deductible_annual"`
	DeductibleMet        decimal.Decimal                   `json:"deductible_met"`
	DeductibleRemaining  decimal.Decimal                   `json:"deductible_remaining"`
	OutOfPocketMax       decimal.Decimal                   `json:"out_of_pocket_max"`
	OutOfPocketSpent     decimal.Decimal                   `json:"out_of_pocket_spent"`
	OutOfPocketRemaining decimal.Decimal                   `json:"out_of_pocket_remaining"`
	CoverageDetails      map[string]domain.ServiceCoverage `json:"coverage_details"`
	NetworkInfo          domain.NetworkInfo                `json:"network_info"`
}

// MemberInfo identifies the member a result belongs to.
type MemberInfo struct {
	Name        string `json:"name"`
	UserID      string `json:"user_id"`
	MemberSince string `json:"member_since"`
	Dependents  int    `json:"dependents"`
}

// CoverageResult is returned by coverage_lookup.
type CoverageResult struct {
	domain.Outcome
	Data     *CoverageData `json:"data"`
	UserInfo *MemberInfo   `json:"user_info,omitempty"`
}

// Coverage looks up plan details, deductibles and out-of-pocket figures.
// The query is accepted for future filtering and is currently unused.
func (r *Registry) Coverage(userID, _ string) *CoverageResult {
	u, ok := r.data.UserWithPlan(userID)
	if !ok {
		return &CoverageResult{Outcome: userNotFound(userID)}
	}

	data := &CoverageData{
		DeductibleAnnual:     u.DeductibleAnnual,
		DeductibleMet:        u.DeductibleMet,
		DeductibleRemaining:  u.DeductibleRemaining(),
		OutOfPocketMax:       u.OutOfPocketMax,
		OutOfPocketSpent:     u.OutOfPocketSpent,
		OutOfPocketRemaining: u.OutOfPocketRemaining(),
	}
	if u.Plan != nil {
		data.PlanName = u.Plan.PlanName
		data.PlanType = u.Plan.PlanType
		data.MonthlyPremium = u.Plan.MonthlyPremium
		data.CoverageDetails = u.Plan.Coverage
		data.NetworkInfo = u.Plan.NetworkInfo
	}

	return &CoverageResult{
		Outcome: domain.Outcome{
			Status:  domain.ToolSuccess,
			Message: fmt.Sprintf("Retrieved coverage information for %s", u.Name),
		},
		Data: data,
		UserInfo: &MemberInfo{
			Name:        u.Name,
			UserID:      u.UserID,
			MemberSince: u.MemberSince,
			Dependents:  u.Dependents,
		},
	}
}
