// Package data embeds the default mock insurance dataset.
package data

import "embed"

// FS holds user_profiles.json, insurance_plans.json and claims_data.json.
//
//go:embed *.json
var FS embed.FS
