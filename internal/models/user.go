package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is one registered individual, keyed externally by the Keycloak subject.
// Optional attributes are pointers; nil means absent.
type User struct {
	ID                           uint                        `gorm:"primaryKey;autoIncrement" bson:"id" json:"id"`
	KeycloakID                   string                      `gorm:"column:keycloak_id;uniqueIndex;not null" bson:"keycloak_id" json:"keycloak_id"`
	FirstName                    *string                     `gorm:"column:first_name;size:35" bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName                     *string                     `gorm:"column:last_name;size:35" bson:"last_name,omitempty" json:"last_name,omitempty"`
	EraCommonsID                 *string                     `gorm:"column:era_commons_id" bson:"era_commons_id,omitempty" json:"era_commons_id,omitempty"`
	NihNedID                     *string                     `gorm:"column:nih_ned_id" bson:"nih_ned_id,omitempty" json:"nih_ned_id,omitempty"`
	CommercialUseReason          *string                     `gorm:"column:commercial_use_reason" bson:"commercial_use_reason,omitempty" json:"commercial_use_reason,omitempty"`
	Email                        *string                     `gorm:"column:email" bson:"email,omitempty" json:"email,omitempty"`
	PublicEmail                  *string                     `gorm:"column:public_email" bson:"public_email,omitempty" json:"public_email,omitempty"`
	NewsletterEmail              *string                     `gorm:"column:newsletter_email" bson:"newsletter_email,omitempty" json:"newsletter_email,omitempty"`
	ExternalIndividualEmail      *string                     `gorm:"column:external_individual_email" bson:"external_individual_email,omitempty" json:"external_individual_email,omitempty"`
	ExternalIndividualFullname   *string                     `gorm:"column:external_individual_fullname" bson:"external_individual_fullname,omitempty" json:"external_individual_fullname,omitempty"`
	Linkedin                     *string                     `gorm:"column:linkedin" bson:"linkedin,omitempty" json:"linkedin,omitempty"`
	Roles                        datatypes.JSONSlice[string] `gorm:"column:roles" bson:"roles,omitempty" json:"roles,omitempty"`
	Affiliation                  *string                     `gorm:"column:affiliation" bson:"affiliation,omitempty" json:"affiliation,omitempty"`
	PortalUsages                 datatypes.JSONSlice[string] `gorm:"column:portal_usages" bson:"portal_usages,omitempty" json:"portal_usages,omitempty"`
	ResearchDomains              datatypes.JSONSlice[string] `gorm:"column:research_domains" bson:"research_domains,omitempty" json:"research_domains,omitempty"`
	ResearchAreaDescription      *string                     `gorm:"column:research_area_description;type:text" bson:"research_area_description,omitempty" json:"research_area_description,omitempty"`
	ProfileImageKey              *string                     `gorm:"column:profile_image_key;type:text" bson:"profile_image_key,omitempty" json:"profile_image_key,omitempty"`
	Locale                       *Locale                     `gorm:"column:locale" bson:"locale,omitempty" json:"locale,omitempty"`
	NewsletterSubscriptionStatus *NewsletterStatus           `gorm:"column:newsletter_subscription_status" bson:"newsletter_subscription_status,omitempty" json:"newsletter_subscription_status,omitempty"`
	CreationDate                 time.Time                   `gorm:"column:creation_date;not null" bson:"creation_date" json:"creation_date"`
	UpdatedDate                  time.Time                   `gorm:"column:updated_date;not null" bson:"updated_date" json:"updated_date"`
	ConsentDate                  *time.Time                  `gorm:"column:consent_date" bson:"consent_date,omitempty" json:"consent_date,omitempty"`
	AcceptedTerms                bool                        `gorm:"column:accepted_terms;not null;default:false" bson:"accepted_terms" json:"accepted_terms"`
	UnderstandDisclaimer         bool                        `gorm:"column:understand_disclaimer;not null;default:false" bson:"understand_disclaimer" json:"understand_disclaimer"`
	CompletedRegistration        bool                        `gorm:"column:completed_registration;not null;default:false" bson:"completed_registration" json:"completed_registration"`
	Deleted                      bool                        `gorm:"column:deleted;not null;default:false" bson:"deleted" json:"deleted"`
	Config                       datatypes.JSON              `gorm:"column:config;not null" bson:"config" json:"config"`
}

func (User) TableName() string { return "users" }

// BeforeSave runs normalization and the rule table on every gorm write.
func (u *User) BeforeSave(_ *gorm.DB) error {
	return u.Prepare()
}

// Now is the timestamp source for record defaults, truncated to the
// precision every supported store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewUser returns a record for the subject with defaults taken at call time.
func NewUser(keycloakID string) *User {
	return NewUserAt(keycloakID, Now())
}

// NewUserAt is NewUser with an explicit construction time.
func NewUserAt(keycloakID string, at time.Time) *User {
	return &User{
		KeycloakID:   keycloakID,
		CreationDate: at,
		UpdatedDate:  at,
		Config:       datatypes.JSON(`{}`),
	}
}

// Clone returns a deep copy, so callers can mutate without touching stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.FirstName = cloneString(u.FirstName)
	c.LastName = cloneString(u.LastName)
	c.EraCommonsID = cloneString(u.EraCommonsID)
	c.NihNedID = cloneString(u.NihNedID)
	c.CommercialUseReason = cloneString(u.CommercialUseReason)
	c.Email = cloneString(u.Email)
	c.PublicEmail = cloneString(u.PublicEmail)
	c.NewsletterEmail = cloneString(u.NewsletterEmail)
	c.ExternalIndividualEmail = cloneString(u.ExternalIndividualEmail)
	c.ExternalIndividualFullname = cloneString(u.ExternalIndividualFullname)
	c.Linkedin = cloneString(u.Linkedin)
	c.Affiliation = cloneString(u.Affiliation)
	c.ResearchAreaDescription = cloneString(u.ResearchAreaDescription)
	c.ProfileImageKey = cloneString(u.ProfileImageKey)
	c.Roles = cloneList(u.Roles)
	c.PortalUsages = cloneList(u.PortalUsages)
	c.ResearchDomains = cloneList(u.ResearchDomains)
	if u.Locale != nil {
		l := *u.Locale
		c.Locale = &l
	}
	if u.NewsletterSubscriptionStatus != nil {
		s := *u.NewsletterSubscriptionStatus
		c.NewsletterSubscriptionStatus = &s
	}
	if u.ConsentDate != nil {
		t := *u.ConsentDate
		c.ConsentDate = &t
	}
	if u.Config != nil {
		c.Config = append(datatypes.JSON(nil), u.Config...)
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneList(l datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	if l == nil {
		return nil
	}
	return append(datatypes.JSONSlice[string]{}, l...)
}
