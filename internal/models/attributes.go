package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Attributes is the client-writable part of a user record. A nil field was
// not provided and leaves the record untouched when applied.
type Attributes struct {
	FirstName                    *string           `json:"first_name"`
	LastName                     *string           `json:"last_name"`
	EraCommonsID                 *string           `json:"era_commons_id"`
	NihNedID                     *string           `json:"nih_ned_id"`
	CommercialUseReason          *string           `json:"commercial_use_reason"`
	Email                        *string           `json:"email"`
	PublicEmail                  *string           `json:"public_email"`
	NewsletterEmail              *string           `json:"newsletter_email"`
	ExternalIndividualEmail      *string           `json:"external_individual_email"`
	ExternalIndividualFullname   *string           `json:"external_individual_fullname"`
	Linkedin                     *string           `json:"linkedin"`
	Roles                        *[]string         `json:"roles"`
	Affiliation                  *string           `json:"affiliation"`
	PortalUsages                 *[]string         `json:"portal_usages"`
	ResearchDomains              *[]string         `json:"research_domains"`
	ResearchAreaDescription      *string           `json:"research_area_description"`
	ProfileImageKey              *string           `json:"profile_image_key"`
	Locale                       *Locale           `json:"locale"`
	NewsletterSubscriptionStatus *NewsletterStatus `json:"newsletter_subscription_status"`
	ConsentDate                  *ConsentTime      `json:"consent_date"`
	AcceptedTerms                *bool             `json:"accepted_terms"`
	UnderstandDisclaimer         *bool             `json:"understand_disclaimer"`
	CompletedRegistration        *bool             `json:"completed_registration"`
	Config                       json.RawMessage   `json:"config"`
}

// DecodeAttributes parses a JSON attribute document. Values of the wrong JSON
// type yield a TypeMismatch and unknown enum members an InvalidEnumMember.
// Server-managed keys (id, keycloak_id, dates, deleted) are ignored.
func DecodeAttributes(data []byte) (*Attributes, error) {
	var a Attributes
	if len(bytes.TrimSpace(data)) == 0 {
		return &a, nil
	}
	if err := json.Unmarshal(data, &a); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			field := te.Field
			if field == "" {
				field = "(document)"
			}
			return nil, TypeMismatch(field, te.Type.String(), te.Value)
		}
		if fe, ok := AsFieldError(err); ok {
			return nil, fe
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &a, nil
}

// ApplyTo overwrites the provided attributes on u.
func (a *Attributes) ApplyTo(u *User) {
	setString(&u.FirstName, a.FirstName)
	setString(&u.LastName, a.LastName)
	setString(&u.EraCommonsID, a.EraCommonsID)
	setString(&u.NihNedID, a.NihNedID)
	setString(&u.CommercialUseReason, a.CommercialUseReason)
	setString(&u.Email, a.Email)
	setString(&u.PublicEmail, a.PublicEmail)
	setString(&u.NewsletterEmail, a.NewsletterEmail)
	setString(&u.ExternalIndividualEmail, a.ExternalIndividualEmail)
	setString(&u.ExternalIndividualFullname, a.ExternalIndividualFullname)
	setString(&u.Linkedin, a.Linkedin)
	setString(&u.Affiliation, a.Affiliation)
	setString(&u.ResearchAreaDescription, a.ResearchAreaDescription)
	setString(&u.ProfileImageKey, a.ProfileImageKey)
	setList(&u.Roles, a.Roles)
	setList(&u.PortalUsages, a.PortalUsages)
	setList(&u.ResearchDomains, a.ResearchDomains)
	if a.Locale != nil {
		l := *a.Locale
		u.Locale = &l
	}
	if a.NewsletterSubscriptionStatus != nil {
		s := *a.NewsletterSubscriptionStatus
		u.NewsletterSubscriptionStatus = &s
	}
	if a.ConsentDate != nil {
		t := time.Time(*a.ConsentDate).UTC().Truncate(time.Millisecond)
		u.ConsentDate = &t
	}
	if a.AcceptedTerms != nil {
		u.AcceptedTerms = *a.AcceptedTerms
	}
	if a.UnderstandDisclaimer != nil {
		u.UnderstandDisclaimer = *a.UnderstandDisclaimer
	}
	if a.CompletedRegistration != nil {
		u.CompletedRegistration = *a.CompletedRegistration
	}
	if len(a.Config) > 0 && !bytes.Equal(bytes.TrimSpace(a.Config), []byte("null")) {
		u.Config = append(datatypes.JSON(nil), a.Config...)
	}
}

// ConsentTime is the consent_date attribute, an RFC 3339 timestamp.
type ConsentTime time.Time

func (c *ConsentTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var v interface{}
		_ = json.Unmarshal(b, &v)
		return TypeMismatch("consent_date", "RFC 3339 timestamp", jsonKind(v))
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return TypeMismatch("consent_date", "RFC 3339 timestamp", s)
	}
	*c = ConsentTime(t)
	return nil
}

func setString(dst **string, v *string) {
	if v == nil {
		return
	}
	s := *v
	*dst = &s
}

func setList(dst *datatypes.JSONSlice[string], v *[]string) {
	if v == nil {
		return
	}
	*dst = append(datatypes.JSONSlice[string]{}, (*v)...)
}
