package models

import "github.com/google/uuid"

// DefaultBrandColor is used in notifications when a brand has no color set.
const DefaultBrandColor = "#6366f1"

// Brand is the subject being monitored. Read-only input to the core.
type Brand struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Aliases     []string  `json:"aliases,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Competitors []string  `json:"competitors,omitempty"`
	Color       string    `json:"color,omitempty"`
}

// EffectiveColor returns the brand color, falling back to DefaultBrandColor.
func (b *Brand) EffectiveColor() string {
	if b == nil || b.Color == "" {
		return DefaultBrandColor
	}
	return b.Color
}

// Prompt is a user question tracked for a brand.
type Prompt struct {
	ID      uuid.UUID `json:"id"`
	BrandID uuid.UUID `json:"brand_id"`
	Text    string    `json:"text"`
}
