package tools

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/shopspring/decimal"
)

// PlanInfo names the plan a benefit was checked against.
type PlanInfo struct {
	PlanName string `json:"plan_name"`
	PlanType string `json:"plan_type"`
}

// BenefitMember carries the member fields relevant to a benefit check.
type BenefitMember struct {
	Name                string          `json:"name"`
	DeductibleRemaining decimal.Decimal `json:"deductible_remaining"`
}

// BenefitResult is returned by benefit_verify.
type BenefitResult struct {
	domain.Outcome
	ServiceType       string                  `json:"service_type"`
	IsCovered         bool                    `json:"is_covered"`
	CoverageDetails   *domain.ServiceCoverage `json:"coverage_details"`
	PlanInfo          *PlanInfo               `json:"plan_info,omitempty"`
	UserInfo          *BenefitMember          `json:"user_info,omitempty"`
	AvailableServices []string                `json:"available_services,omitempty"`
}

// NormalizeService maps free text like "Physical Therapy" to a coverage key.
func NormalizeService(service string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(service)), " ", "_")
}

// Benefit checks whether a service category is covered by the member's plan.
func (r *Registry) Benefit(userID, serviceType string) *BenefitResult {
	u, ok := r.data.UserWithPlan(userID)
	if !ok {
		return &BenefitResult{Outcome: userNotFound(userID), ServiceType: serviceType}
	}

	var coverage map[string]domain.ServiceCoverage
	var plan PlanInfo
	if u.Plan != nil {
		coverage = u.Plan.Coverage
		plan = PlanInfo{PlanName: u.Plan.PlanName, PlanType: u.Plan.PlanType}
	}

	sc, ok := coverage[NormalizeService(serviceType)]
	if !ok {
		available := make([]string, 0, len(coverage))
		for k := range coverage {
			available = append(available, k)
		}
		slices.Sort(available)
		return &BenefitResult{
			Outcome: domain.Outcome{
				Status: domain.ToolError,
				Message: fmt.Sprintf("Service '%s' not found in coverage. Available services: %s",
					serviceType, strings.Join(available, ", ")),
			},
			ServiceType:       serviceType,
			AvailableServices: available,
		}
	}

	return &BenefitResult{
		Outcome: domain.Outcome{
			Status:  domain.ToolSuccess,
			Message: fmt.Sprintf("Coverage details retrieved for %s under %s plan", serviceType, plan.PlanName),
		},
		ServiceType:     serviceType,
		IsCovered:       true,
		CoverageDetails: &sc,
		PlanInfo:        &plan,
		UserInfo: &BenefitMember{
			Name:                u.Name,
			DeductibleRemaining: u.DeductibleRemaining(),
		},
	}
}
