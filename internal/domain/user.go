// Package domain contains core domain types for the CARE assistant.
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UserProfile is a member record from the dataset.
type UserProfile struct {
	UserID           string          `json:"user_id"`
	Name             string          `json:"name"`
	Age              int             `json:"age"`
	PlanID           string          `json:"plan_id"`
	MemberSince      string          `json:"member_since"`
	DeductibleAnnual decimal.Decimal `json:"deductible_annual"`
	DeductibleMet    decimal.Decimal `json:"deductible_met"`
	OutOfPocketMax   decimal.Decimal `json:"out_of_pocket_max"`
	OutOfPocketSpent decimal.Decimal `json:"out_of_pocket_spent"`
	Dependents       int             `json:"dependents"`
	Notes            string          `json:"notes,omitempty"`
}

// FirstName returns the first whitespace-separated token of the name.
func (u *UserProfile) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DeductibleRemaining returns annual deductible minus the amount met.
func (u *UserProfile) DeductibleRemaining() decimal.Decimal {
	return u.DeductibleAnnual.Sub(u.DeductibleMet)
}

// OutOfPocketRemaining returns the out-of-pocket maximum minus the amount spent.
func (u *UserProfile) OutOfPocketRemaining() decimal.Decimal {
	return u.OutOfPocketMax.Sub(u.OutOfPocketSpent)
}

// CostShare describes what a member pays for a service in one network tier.
type CostShare struct {
	Copay             *decimal.Decimal `json:"copay,omitempty"`
	CoveragePercent   *int             `json:"coverage_percent,omitempty"`
	DeductibleApplies bool             `json:"deductible_applies"`
}

// ServiceCoverage is the plan's cost sharing for one service category.
type ServiceCoverage struct {
	InNetwork    CostShare  `json:"in_network"`
	OutOfNetwork *CostShare `json:"out_of_network,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// NetworkInfo describes the provider network of a plan.
type NetworkInfo struct {
	NetworkName         string `json:"network_name"`
	ReferralRequired    bool   `json:"referral_required"`
	OutOfNetworkCovered bool   `json:"out_of_network_covered"`
}

// Plan is an insurance plan definition keyed by service category.
type Plan struct {
	PlanID         string                     `json:"plan_id"`
	PlanName       string                     `json:"plan_name"`
	PlanType       string                     `json:"plan_type"`
	MonthlyPremium decimal.Decimal            `json:"monthly_premium"`
	Coverage       map[string]ServiceCoverage `json:"coverage"`
	NetworkInfo    NetworkInfo                `json:"network_info"`
}

// Claim is a single claims record.
type Claim struct {
	ClaimID               string          `json:"claim_id"`
	UserID                string          `json:"user_id"`
	ServiceDate           string          `json:"service_date"`
	ServiceType           string          `json:"service_type"`
	ProviderName          string          `json:"provider_name"`
	BilledAmount          decimal.Decimal `json:"billed_amount"`
	InsurancePaid         decimal.Decimal `json:"insurance_paid"`
	PatientResponsibility decimal.Decimal `json:"patient_responsibility"`
	AppliedToDeductible   decimal.Decimal `json:"applied_to_deductible"`
	ClaimStatus           string          `json:"claim_status"`
	DenialReason          string          `json:"denial_reason,omitempty"`
}

// UserWithPlan is a profile copy with its plan embedded.
type UserWithPlan struct {
	UserProfile
	Plan *Plan `json:"plan_details"`
}
