// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz

import (
	"fmt"

	"github.com/samber/oops"
)

// Classification is an ordered data-sensitivity tier. Higher values dominate
// lower ones: a context cleared for OFFICIAL_SENSITIVE may read OFFICIAL
// records, never the reverse.
type Classification int

// Classification tiers, least to most sensitive.
const (
	ClassificationPublic Classification = iota // PUBLIC
	ClassificationOfficial                     // OFFICIAL
	ClassificationOfficialSensitive            // OFFICIAL_SENSITIVE
	ClassificationSecret                       // SECRET
	ClassificationTopSecret                    // TOP_SECRET
)

var classificationStrings = [...]string{
	"PUBLIC",
	"OFFICIAL",
	"OFFICIAL_SENSITIVE",
	"SECRET",
	"TOP_SECRET",
}

func (c Classification) String() string {
	if c >= 0 && int(c) < len(classificationStrings) {
		return classificationStrings[c]
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// Dominates reports whether data classified at level other may be handled
// by a holder cleared at level c.
func (c Classification) Dominates(other Classification) bool {
	return c >= other
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClassification converts a wire string into a Classification.
func ParseClassification(s string) (Classification, error) {
	for i, name := range classificationStrings {
		if name == s {
			return Classification(i), nil
		}
	}
	return 0, oops.Code(CodeValidationFailed).
		With("classification", s).
		Errorf("unknown data classification")
}

// Residency is the legal/geographic zone a tenant's data must remain within.
// Zones are labels, not an order: guard checks require exact equality.
type Residency string

// Residency zones.
const (
	ResidencyUKOnly           Residency = "UK_ONLY"
	ResidencyUKAndEEA         Residency = "UK_AND_EEA"
	ResidencyGlobalRestricted Residency = "GLOBAL_RESTRICTED"
)

func (r Residency) String() string {
	return string(r)
}

// ParseResidency converts a wire string into a Residency.
func ParseResidency(s string) (Residency, error) {
	switch Residency(s) {
	case ResidencyUKOnly, ResidencyUKAndEEA, ResidencyGlobalRestricted:
		return Residency(s), nil
	default:
		return "", oops.Code(CodeValidationFailed).
			With("residency", s).
			Errorf("unknown data residency zone")
	}
}
