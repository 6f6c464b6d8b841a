package model

import "time"

// Roles carried in the JWT "role" claim and the users.role column.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Reward tiers derived from the points balance.
const (
	LevelBronze   = "Bronze"
	LevelSilver   = "Silver"
	LevelGold     = "Gold"
	LevelPlatinum = "Platinum"
)

// Levels lists the tiers from lowest to highest.
var Levels = []string{LevelBronze, LevelSilver, LevelGold, LevelPlatinum}

// LevelFor maps a points balance onto its tier.
//
//	Bronze   < 200
//	Silver   >= 200
//	Gold     >= 500
//	Platinum >= 1000
func LevelFor(points int) string {
	switch {
	case points >= 1000:
		return LevelPlatinum
	case points >= 500:
		return LevelGold
	case points >= 200:
		return LevelSilver
	default:
		return LevelBronze
	}
}

// User represents an application user record as stored in the `users`
// table. Authentication and profile editing are owned elsewhere; the lesson
// engine reads routing fields (push token, language, email) and adjusts the
// points balance.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address, also the email fallback channel.
//	PasswordHash – bcrypt hashed password.
//	Role         – student, teacher or admin.
//	PushToken    – FCM registration token, nil when the device never registered.
//	Language     – preferred notification language ("en" or "ar").
//	Points/Level – reward balance and derived tier.
type User struct {
	ID           uint64    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	PushToken    *string   `db:"push_token" json:"-"`
	Language     string    `db:"language" json:"language"`
	Points       int       `db:"points" json:"points"`
	Level        string    `db:"level" json:"level"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name, falling back to the email.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// UserSummary is the public projection used when expanding related users.
type UserSummary struct {
	ID        uint64 `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	Role      string `db:"role" json:"role"`
}

// NewUser is the input for creating an account.
type NewUser struct {
	Email       string
	Password    string
	Role        string
	FirstName   string
	LastName    string
	Language    string
	Subjects    []string // teachers only
	HourlyPrice float64  // teachers only
}

// Payout registration states (teacher_profiles.payout_status).
const (
	PayoutNone        = "none"
	PayoutRegistering = "registering"
	PayoutRegistered  = "registered"
	PayoutFailed      = "failed"
)

// TeacherProfile mirrors `teacher_profiles` plus the teacher's subjects.
type TeacherProfile struct {
	UserID            uint64   `db:"user_id" json:"user_id"`
	HourlyPrice       float64  `db:"hourly_price" json:"hourly_price"`
	IsVerified        bool     `db:"is_verified" json:"is_verified"`
	PayoutMethod      *string  `db:"payout_method" json:"payout_method,omitempty"`
	AccountName       *string  `db:"account_name" json:"account_name,omitempty"`
	AccountNumber     *string  `db:"account_number" json:"account_number,omitempty"`
	BankName          *string  `db:"bank_name" json:"bank_name,omitempty"`
	WalletProvider    *string  `db:"wallet_provider" json:"wallet_provider,omitempty"`
	PhoneNumber       *string  `db:"phone_number" json:"phone_number,omitempty"`
	PayoutRecipientID *string  `db:"payout_recipient_id" json:"payout_recipient_id,omitempty"`
	PayoutStatus      string   `db:"payout_status" json:"payout_status"`
	PayoutError       *string  `db:"payout_error" json:"payout_error,omitempty"`
	Subjects          []string `db:"-" json:"subjects"`
}

// HasPayoutRecipient reports whether the gateway knows this teacher as a
// payout recipient.
func (p TeacherProfile) HasPayoutRecipient() bool {
	return p.PayoutRecipientID != nil && *p.PayoutRecipientID != ""
}

// TeacherCandidate is a teacher considered for an open lesson request.
type TeacherCandidate struct {
	ID          uint64  `db:"id"`
	HourlyPrice float64 `db:"hourly_price"`
}

// PaymentInfo is the payout account a teacher submits.
type PaymentInfo struct {
	Method         string
	AccountName    string
	AccountNumber  string
	BankName       string
	WalletProvider string
	PhoneNumber    string
}

// PointsBalance is a user's reward balance and tier.
type PointsBalance struct {
	UserID    uint64 `db:"id" json:"user_id"`
	FirstName string `db:"first_name" json:"first_name,omitempty"`
	LastName  string `db:"last_name" json:"last_name,omitempty"`
	Email     string `db:"email" json:"email,omitempty"`
	Points    int    `db:"points" json:"points"`
	Level     string `db:"level" json:"level"`
}
