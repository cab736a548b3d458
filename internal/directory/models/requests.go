package models

import (
	"net/url"
	"strings"

	dErrors "gatehouse/pkg/domain-errors"
)

type CreateApplicationRequest struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Config      AppConfig `json:"config"`
}

// Normalize trims input and deduplicates collections for stable
// validation and storage.
func (r *CreateApplicationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Description = strings.TrimSpace(r.Description)
	r.Config.RedirectAllowList = normalizeStrings(r.Config.RedirectAllowList)
	r.Config.CORSOrigins = normalizeStrings(r.Config.CORSOrigins)
}

func (r *CreateApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if r.Slug == "" {
		return dErrors.New(dErrors.CodeValidation, "slug is required")
	}
	if len(r.Slug) > 24 {
		return dErrors.New(dErrors.CodeValidation, "slug must be 24 characters or less")
	}
	if !slugPattern.MatchString(r.Slug) {
		return dErrors.New(dErrors.CodeValidation, "slug must be lowercase alphanumeric with hyphens")
	}
	for _, entry := range r.Config.RedirectAllowList {
		if err := validateAllowListEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

type UpdateApplicationRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Status      *ApplicationStatus `json:"status"`
	Config      *AppConfig         `json:"config"`
}

func (r *UpdateApplicationRequest) Normalize() {
	if r == nil {
		return
	}
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
	}
	if r.Config != nil {
		r.Config.RedirectAllowList = normalizeStrings(r.Config.RedirectAllowList)
		r.Config.CORSOrigins = normalizeStrings(r.Config.CORSOrigins)
	}
}

func (r *UpdateApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Name != nil {
		if *r.Name == "" {
			return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
		}
		if len(*r.Name) > 128 {
			return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
		}
	}
	if r.Status != nil && !ValidStatus(*r.Status) {
		return dErrors.New(dErrors.CodeValidation, "status must be development, active, or inactive")
	}
	if r.Config != nil {
		for _, entry := range r.Config.RedirectAllowList {
			if err := validateAllowListEntry(entry); err != nil {
				return err
			}
		}
	}
	return nil
}

type CreateTierRequest struct {
	ApplicationID string   `json:"application_id"`
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	TierLevel     int      `json:"tier_level"`
	Features      []string `json:"features"`
	Pricing       *Pricing `json:"pricing"`
}

func (r *CreateTierRequest) Normalize() {
	if r == nil {
		return
	}
	r.ApplicationID = strings.TrimSpace(r.ApplicationID)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Name = strings.TrimSpace(r.Name)
	r.Features = normalizeStrings(r.Features)
}

func (r *CreateTierRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.ApplicationID == "" {
		return dErrors.New(dErrors.CodeValidation, "application_id is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Slug == "" {
		return dErrors.New(dErrors.CodeValidation, "slug is required")
	}
	if !slugPattern.MatchString(r.Slug) {
		return dErrors.New(dErrors.CodeValidation, "slug must be lowercase alphanumeric with hyphens")
	}
	if r.Pricing != nil {
		if r.Pricing.PriceCents < 0 {
			return dErrors.New(dErrors.CodeValidation, "price_cents cannot be negative")
		}
		if r.Pricing.Currency == "" {
			return dErrors.New(dErrors.CodeValidation, "pricing currency is required")
		}
	}
	return nil
}

type UpdateTierRequest struct {
	Name      *string   `json:"name"`
	TierLevel *int      `json:"tier_level"`
	Features  *[]string `json:"features"`
	Pricing   *Pricing  `json:"pricing"`
}

func (r *UpdateTierRequest) Normalize() {
	if r == nil {
		return
	}
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.Features != nil {
		normalized := normalizeStrings(*r.Features)
		r.Features = &normalized
	}
}

func (r *UpdateTierRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Name != nil && *r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	if r.Pricing != nil && r.Pricing.PriceCents < 0 {
		return dErrors.New(dErrors.CodeValidation, "price_cents cannot be negative")
	}
	return nil
}

type CreateMembershipRequest struct {
	UserID        string           `json:"user_id"`
	ApplicationID string           `json:"application_id"`
	TierID        string           `json:"tier_id"`
	Status        MembershipStatus `json:"status"`
}

func (r *CreateMembershipRequest) Normalize() {
	if r == nil {
		return
	}
	r.UserID = strings.TrimSpace(r.UserID)
	r.ApplicationID = strings.TrimSpace(r.ApplicationID)
	r.TierID = strings.TrimSpace(r.TierID)
	if r.Status == "" {
		r.Status = MembershipActive
	}
}

func (r *CreateMembershipRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if r.ApplicationID == "" {
		return dErrors.New(dErrors.CodeValidation, "application_id is required")
	}
	if !ValidMembershipStatus(r.Status) {
		return dErrors.New(dErrors.CodeValidation, "status must be active, inactive, past_due, or canceled")
	}
	return nil
}

type UpdateMembershipStatusRequest struct {
	Status MembershipStatus `json:"status"`
}

func (r *UpdateMembershipStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if !ValidMembershipStatus(r.Status) {
		return dErrors.New(dErrors.CodeValidation, "status must be active, inactive, past_due, or canceled")
	}
	return nil
}

func validateAllowListEntry(entry string) error {
	parsed, err := url.Parse(entry)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "redirect allow-list entries must be absolute URLs")
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return dErrors.New(dErrors.CodeValidation, "redirect allow-list entries must use http or https")
	}
	if parsed.Fragment != "" {
		return dErrors.New(dErrors.CodeValidation, "redirect allow-list entries cannot contain fragments")
	}
	return nil
}

// normalizeStrings trims entries, drops empties, and deduplicates while
// preserving order.
func normalizeStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
