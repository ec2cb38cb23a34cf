package tools

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/shopspring/decimal"
)

// ClaimsSummary aggregates money over the filtered claims. The status
// breakdown always covers every claim of the member.
type ClaimsSummary struct {
	TotalBilled                decimal.Decimal `json:"total_billed"`
	TotalInsurancePaid         decimal.Decimal `json:"total_insurance_paid"`
	TotalPatientResponsibility decimal.Decimal `json:"total_patient_responsibility"`
	TotalAppliedToDeductible   decimal.Decimal `json:"total_applied_to_deductible"`
	StatusBreakdown            map[string]int  `json:"status_breakdown"`
}

// ClaimsMember carries the member fields relevant to claims.
type ClaimsMember struct {
	Name             string          `json:"name"`
	DeductibleMet    decimal.Decimal `json:"deductible_met"`
	OutOfPocketSpent decimal.Decimal `json:"out_of_pocket_spent"`
}

// ClaimsResult is returned by claims_status.
type ClaimsResult struct {
	domain.Outcome
	ClaimsCount   int            `json:"claims_count"`
	Claims        []domain.Claim `json:"claims"`
	Summary       *ClaimsSummary `json:"summary,omitempty"`
	UserInfo      *ClaimsMember  `json:"user_info,omitempty"`
	FilterApplied string         `json:"filter_applied,omitempty"`
}

// Claims returns the member's claims filtered by status ("all", "pending",
// "approved", "denied"), newest service date first.
func (r *Registry) Claims(userID, statusFilter string) *ClaimsResult {
	u, ok := r.data.UserByID(userID)
	if !ok {
		return &ClaimsResult{Outcome: userNotFound(userID), Claims: []domain.Claim{}}
	}

	all := r.data.ClaimsForUser(userID)
	filter := strings.ToLower(strings.TrimSpace(statusFilter))
	if filter == "" {
		filter = "all"
	}

	filtered := make([]domain.Claim, 0, len(all))
	for _, c := range all {
		if filter == "all" || strings.ToLower(c.ClaimStatus) == filter {
			filtered = append(filtered, c)
		}
	}
	// ISO dates sort lexically.
	slices.SortStableFunc(filtered, func(a, b domain.Claim) int {
		return cmp.Compare(b.ServiceDate, a.ServiceDate)
	})

	summary := &ClaimsSummary{StatusBreakdown: make(map[string]int)}
	for _, c := range filtered {
		summary.TotalBilled = summary.TotalBilled.Add(c.BilledAmount)
		summary.TotalInsurancePaid = summary.TotalInsurancePaid.Add(c.InsurancePaid)
		summary.TotalPatientResponsibility = summary.TotalPatientResponsibility.Add(c.PatientResponsibility)
		summary.TotalAppliedToDeductible = summary.TotalAppliedToDeductible.Add(c.AppliedToDeductible)
	}
	for _, c := range all {
		status := c.ClaimStatus
		if status == "" {
			status = "Unknown"
		}
		summary.StatusBreakdown[status]++
	}

	return &ClaimsResult{
		Outcome: domain.Outcome{
			Status:  domain.ToolSuccess,
			Message: fmt.Sprintf("Retrieved %d claim(s) for %s", len(filtered), u.Name),
		},
		ClaimsCount: len(filtered),
		Claims:      filtered,
		Summary:     summary,
		UserInfo: &ClaimsMember{
			Name:             u.Name,
			DeductibleMet:    u.DeductibleMet,
			OutOfPocketSpent: u.OutOfPocketSpent,
		},
		FilterApplied: filter,
	}
}
