package models

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	NameMinLength = 1
	NameMaxLength = 35
	RoleMaxLength = 100
)

var (
	// letters (any script), digits, spaces and the punctuation found in names and organisations
	namePattern     = regexp.MustCompile(`^[\p{L}\p{M}0-9 '’.,()&/\-]+$`)
	linkedinPattern = regexp.MustCompile(`^https?://([a-z]{2,3}\.)?linkedin\.com/(in|pub|profile)/[^\s/?#]+/?([?#].*)?$`)

	validate = validator.New()
)

// predicate checks one non-absent value of a field.
type predicate func(field, value string) *FieldError

type stringRule struct {
	field    string
	get      func(*User) *string
	required bool
	checks   []predicate
}

type listRule struct {
	field string
	get   func(*User) []string
	each  []predicate
}

func length(min, max int) predicate {
	return func(field, value string) *FieldError {
		if n := utf8.RuneCountInString(value); n < min || n > max {
			return LengthOutOfRange(field, min, max)
		}
		return nil
	}
}

func matches(re *regexp.Regexp) predicate {
	return func(field, value string) *FieldError {
		if !re.MatchString(value) {
			return PatternMismatch(field, value)
		}
		return nil
	}
}

// emptyOr accepts the empty string and otherwise defers to p.
func emptyOr(p predicate) predicate {
	return func(field, value string) *FieldError {
		if value == "" {
			return nil
		}
		return p(field, value)
	}
}

func tag(t string) predicate {
	return func(field, value string) *FieldError {
		if err := validate.Var(value, t); err != nil {
			return PatternMismatch(field, value)
		}
		return nil
	}
}

func uuidV4(field, value string) *FieldError {
	id, err := uuid.Parse(value)
	if err != nil || len(value) != 36 || id.Version() != 4 {
		return PatternMismatch(field, value)
	}
	return nil
}

var (
	isName  = matches(namePattern)
	isEmail = tag("email")
)

// stringRules is evaluated in order; the first failure rejects the record.
var stringRules = []stringRule{
	{field: "keycloak_id", get: func(u *User) *string { return present(u.KeycloakID) }, required: true, checks: []predicate{uuidV4}},
	{field: "first_name", get: func(u *User) *string { return u.FirstName }, checks: []predicate{length(NameMinLength, NameMaxLength), isName}},
	{field: "last_name", get: func(u *User) *string { return u.LastName }, checks: []predicate{length(NameMinLength, NameMaxLength), isName}},
	{field: "commercial_use_reason", get: func(u *User) *string { return u.CommercialUseReason }, checks: []predicate{emptyOr(isName)}},
	{field: "email", get: func(u *User) *string { return u.Email }, checks: []predicate{isEmail}},
	{field: "public_email", get: func(u *User) *string { return u.PublicEmail }, checks: []predicate{isEmail}},
	{field: "newsletter_email", get: func(u *User) *string { return u.NewsletterEmail }, checks: []predicate{isEmail}},
	{field: "external_individual_email", get: func(u *User) *string { return u.ExternalIndividualEmail }, checks: []predicate{isEmail}},
	{field: "external_individual_fullname", get: func(u *User) *string { return u.ExternalIndividualFullname }, checks: []predicate{isName}},
	{field: "linkedin", get: func(u *User) *string { return u.Linkedin }, checks: []predicate{tag("url"), matches(linkedinPattern)}},
	{field: "affiliation", get: func(u *User) *string { return u.Affiliation }, checks: []predicate{emptyOr(isName)}},
}

var listRules = []listRule{
	{field: "roles", get: func(u *User) []string { return u.Roles }, each: []predicate{length(1, RoleMaxLength), isName}},
}

func present(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Normalize coerces blank optional attributes to absent. It runs before
// Validate so that "not provided" and "explicitly blanked" are the same.
func (u *User) Normalize() {
	u.PublicEmail = blankToNil(u.PublicEmail)
	u.ExternalIndividualEmail = blankToNil(u.ExternalIndividualEmail)
	u.Linkedin = blankToNil(u.Linkedin)
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// Validate runs every field predicate against u as-is and returns the first
// *FieldError. Absent optional fields are skipped.
func (u *User) Validate() error {
	for _, r := range stringRules {
		v := r.get(u)
		if v == nil {
			if r.required {
				return MissingRequiredField(r.field)
			}
			continue
		}
		for _, check := range r.checks {
			if fe := check(r.field, *v); fe != nil {
				return fe
			}
		}
	}
	for _, r := range listRules {
		for _, item := range r.get(u) {
			for _, check := range r.each {
				if fe := check(r.field, item); fe != nil {
					return fe
				}
			}
		}
	}
	if u.Locale != nil && !u.Locale.Valid() {
		return InvalidEnumMember("locale", string(*u.Locale))
	}
	if u.NewsletterSubscriptionStatus != nil && !u.NewsletterSubscriptionStatus.Valid() {
		return InvalidEnumMember("newsletter_subscription_status", string(*u.NewsletterSubscriptionStatus))
	}
	if u.CreationDate.IsZero() {
		return MissingRequiredField("creation_date")
	}
	if u.UpdatedDate.IsZero() {
		return MissingRequiredField("updated_date")
	}
	return validateConfig(u.Config)
}

func validateConfig(cfg []byte) error {
	if len(cfg) == 0 {
		return MissingRequiredField("config")
	}
	var v interface{}
	if err := json.Unmarshal(cfg, &v); err != nil {
		return TypeMismatch("config", "object", "invalid json")
	}
	switch v.(type) {
	case map[string]interface{}:
		return nil
	case nil:
		return MissingRequiredField("config")
	default:
		return TypeMismatch("config", "object", jsonKind(v))
	}
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case []interface{}:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return "object"
}

// Prepare normalizes then validates u. A nil error means u may be persisted.
func (u *User) Prepare() error {
	u.Normalize()
	return u.Validate()
}
