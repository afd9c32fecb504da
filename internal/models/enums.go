package models

// Locale is the interface language of a user.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleFR Locale = "fr"
)

// Locales lists every accepted Locale.
var Locales = []Locale{LocaleEN, LocaleFR}

func (l Locale) Valid() bool {
	switch l {
	case LocaleEN, LocaleFR:
		return true
	}
	return false
}

func (l *Locale) UnmarshalText(b []byte) error {
	v := Locale(b)
	if !v.Valid() {
		return InvalidEnumMember("locale", string(b))
	}
	*l = v
	return nil
}

// NewsletterStatus is the state of the newsletter subscription.
type NewsletterStatus string

const (
	NewsletterSubscribed   NewsletterStatus = "subscribed"
	NewsletterUnsubscribed NewsletterStatus = "unsubscribed"
	NewsletterFailed       NewsletterStatus = "failed"
)

// NewsletterStatuses lists every accepted NewsletterStatus.
var NewsletterStatuses = []NewsletterStatus{NewsletterSubscribed, NewsletterUnsubscribed, NewsletterFailed}

func (s NewsletterStatus) Valid() bool {
	switch s {
	case NewsletterSubscribed, NewsletterUnsubscribed, NewsletterFailed:
		return true
	}
	return false
}

func (s *NewsletterStatus) UnmarshalText(b []byte) error {
	v := NewsletterStatus(b)
	if !v.Valid() {
		return InvalidEnumMember("newsletter_subscription_status", string(b))
	}
	*s = v
	return nil
}
