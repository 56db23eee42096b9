package entities

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PlanFree = "Free"
	RoleUser = "user"
)

// Preferences holds a user's notification and UI settings
type Preferences struct {
	EmailNotifications bool `json:"emailNotifications" bson:"emailNotifications"`
	MarketingEmails    bool `json:"marketingEmails" bson:"marketingEmails"`
	UsageAlerts        bool `json:"usageAlerts" bson:"usageAlerts"`
	DarkMode           bool `json:"darkMode" bson:"darkMode"`
	Animations         bool `json:"animations" bson:"animations"`
}

// Profile is the free-form public part of an account
type Profile struct {
	Bio      string `json:"bio" bson:"bio"`
	Location string `json:"location" bson:"location"`
	Website  string `json:"website" bson:"website"`
}

// User represents a registered account
type User struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name             string             `json:"name" bson:"name"`
	Email            string             `json:"email" bson:"email"`
	PasswordHash     string             `json:"-" bson:"password"`
	Avatar           string             `json:"avatar" bson:"avatar"`
	Plan             string             `json:"plan" bson:"plan"`
	TotalGenerations int64              `json:"totalGenerations" bson:"totalGenerations"`
	Preferences      Preferences        `json:"preferences" bson:"preferences"`
	Profile          Profile            `json:"profile" bson:"profile"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
	LastLogin        *time.Time         `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
}

// DefaultPreferences are applied to new accounts
func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications: true,
		MarketingEmails:    false,
		UsageAlerts:        true,
		DarkMode:           true,
		Animations:         true,
	}
}

// NewUser creates an account on the free plan with default preferences
func NewUser(name, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Plan:         PlanFree,
		Preferences:  DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password is required")
	}
	return nil
}

// JoinDate formats the creation month the way the profile page shows it
func (u *User) JoinDate() string {
	if u.CreatedAt.IsZero() {
		return ""
	}
	return u.CreatedAt.Format("January 2006")
}

// ProfileUpdate carries the fields a user may change on their own account.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name        *string      `json:"name,omitempty"`
	Avatar      *string      `json:"avatar,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
	Profile     *Profile     `json:"profile,omitempty"`
}

// Empty reports whether the update changes nothing
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Avatar == nil && p.Preferences == nil && p.Profile == nil
}
