package types

import "time"

// Gender partitions the athlete pool; coaches only receive athletes of the
// team gender they recruit for.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// UserStatus is the lifecycle status of the account linked to an athlete.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusPending  UserStatus = "PENDING"
	UserStatusDisabled UserStatus = "DISABLED"
)

// Coach is a recruiter at an institution who receives athlete introductions.
type Coach struct {
	ID        string
	Email     string
	FullName  string
	Gender    Gender
	Division  string
	Institute string
}

// WhiteLabel holds a club's branding overrides. Empty fields fall back to
// the platform defaults individually.
type WhiteLabel struct {
	PrimaryColor         string
	AccentColor          string
	FontColor            string
	FontColorSecondary   string
	InputBackgroundColor string
	InputBorderColor     string
}

// Club is the athlete's club as seen by the introduction email. It is only
// populated when the athlete is linked to a club record.
type Club struct {
	ID                   string
	Title                string
	LogoFileID           string
	IsSubscriptionActive bool
	WhiteLabel           WhiteLabel
}

// EligibleAthlete is one row of a coach's eligibility pool, carrying every
// field the introduction email needs.
type EligibleAthlete struct {
	ID             string
	Email          string
	FullName       string
	ClubName       string
	League         string
	GraduationYear int
	Position       string
	Club           *Club
}

// DistributionRecord notes that an athlete was introduced to a coach on a
// given date. Records are append-only.
type DistributionRecord struct {
	CoachID   string
	AthleteID string
	Date      time.Time
}

// SendInput defines the contract for templated email transmission.
type SendInput struct {
	To            string
	From          SenderIdentity
	ReplyTo       string
	TemplateAlias string
	TemplateData  map[string]any
	ReferenceID   string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// SubscriptionHolder is an athlete or club whose subscription flag is driven
// by the payment provider, addressed by the provider's customer ID.
type SubscriptionHolder struct {
	ID         string
	CustomerID string
}
