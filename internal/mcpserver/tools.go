package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ashureev/care-assistant/internal/tools"
)

var coverageLookupTool = mcp.NewTool(tools.CoverageLookup,
	mcp.WithDescription("Get insurance plan details, deductibles, coverage limits and member since date for a member."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("Member id, e.g. user_001"),
	),
	mcp.WithString("query",
		mcp.Description("The member's original question, for context"),
	),
)

var benefitVerifyTool = mcp.NewTool(tools.BenefitVerify,
	mcp.WithDescription("Check whether a specific medical service is covered and what it costs the member."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("Member id, e.g. user_001"),
	),
	mcp.WithString("service_type",
		mcp.Description("Service to check, e.g. physical therapy (default: general medical)"),
	),
)

var claimsStatusTool = mcp.NewTool(tools.ClaimsStatus,
	mcp.WithDescription("View a member's claims history with totals and a status breakdown."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("Member id, e.g. user_001"),
	),
	mcp.WithString("status_filter",
		mcp.Description("Only return claims with this status"),
		mcp.Enum("all", "approved", "pending", "denied"),
	),
)
