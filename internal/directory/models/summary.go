package models

import "time"

// TierSummary is the tier slice of a cross-application membership summary.
type TierSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Level    int      `json:"level"`
	Features []string `json:"features,omitempty"`
}

// MembershipDetail is the membership slice of a summary entry.
type MembershipDetail struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Tier        *TierSummary `json:"tier,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	EndsAt      *time.Time   `json:"endsAt,omitempty"`
	RenewalDate *time.Time   `json:"renewalDate,omitempty"`
	Pricing     *Pricing     `json:"pricing,omitempty"`
}

// MembershipSummary describes one user's standing in one application. The
// session completion response carries one entry per application where the
// user holds any membership, letting the completing application discover
// the user's standing in sibling applications.
type MembershipSummary struct {
	ApplicationID   string           `json:"applicationId"`
	ApplicationName string           `json:"applicationName"`
	ApplicationSlug string           `json:"applicationSlug"`
	Membership      MembershipDetail `json:"membership"`
}
