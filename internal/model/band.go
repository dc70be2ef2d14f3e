// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// AGE BAND
// =============================================================================

// AgeBand is the backend-assigned safety tier. The zero value means absent.
type AgeBand string

const (
	BandNone  AgeBand = ""
	BandChild AgeBand = "child"
	BandTeen  AgeBand = "teen"
	BandAdult AgeBand = "adult"
)

// ParseAgeBand maps a backend string onto an AgeBand.
// Unknown values map to BandNone.
func ParseAgeBand(s string) AgeBand {
	switch AgeBand(strings.ToLower(strings.TrimSpace(s))) {
	case BandChild:
		return BandChild
	case BandTeen:
		return BandTeen
	case BandAdult:
		return BandAdult
	default:
		return BandNone
	}
}

// BandForAge derives a band from a declared age. Ages <= 0 are absent.
func BandForAge(age int) AgeBand {
	switch {
	case age <= 0:
		return BandNone
	case age <= 12:
		return BandChild
	case age <= 17:
		return BandTeen
	default:
		return BandAdult
	}
}

// ActiveBand returns the band shown for the whole conversation: the latest
// message band when there is one, else the band derived from identity age.
func ActiveBand(latest AgeBand, identityAge int) AgeBand {
	if latest != BandNone {
		return latest
	}
	return BandForAge(identityAge)
}

// Copy returns the header description for the band.
func (b AgeBand) Copy() string {
	switch b {
	case BandChild:
		return "Hi! I'll help with fun, safe topics. Ask about science, animals, or words!"
	case BandTeen:
		return "Ask me about learning topics. I'll keep it safe and suggest help for sensitive issues."
	case BandAdult:
		return "Safety filters active. I can redirect if a topic isn't appropriate."
	default:
		return ""
	}
}

// =============================================================================
// RISK LEVEL
// =============================================================================

// RiskLevel is the backend's conversation risk assessment. Zero value is absent.
type RiskLevel string

const (
	RiskNone   RiskLevel = ""
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel maps a backend string onto a RiskLevel.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	default:
		return RiskNone
	}
}
