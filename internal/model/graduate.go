package model

import "time"

// Step status values used across the per-graduate progress flags.  A step is
// "locked" until an earlier step enables it, "pending" when actionable,
// and "completed" once done.  The payments step additionally uses
// "in_progress" while installments are being paid, and the thermo step uses
// "unlocked" between crossing the payment threshold and customizing.
const (
	StepLocked     = "locked"
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepUnlocked   = "unlocked"
	StepCompleted  = "completed"
)

// Roles carried in the JWT "role" claim.  Graduates self-register; admin
// accounts are provisioned directly in the database.
const (
	RoleGraduate = "GRADUATE"
	RoleAdmin    = "ADMIN"
)

// Graduate represents a registrant as stored in the `graduates` table.
// Each graduate belongs to exactly one event and carries the flags that
// drive the step-by-step onboarding flow (tickets, layout, meals,
// payments, thermo).
//
// Fields:
//  ID           – primary key identifier.
//  EventID      – event this graduate registered for.
//  FullName     – full display name.
//  Email        – unique login email.
//  Phone        – contact phone number.
//  Career       – degree program.
//  Generation   – class generation label (e.g. "2020-2024").
//  GroupName    – optional class group.
//  PasswordHash – bcrypt hashed password.
//  Role         – GRADUATE or ADMIN.
//  Status       – account status (pending until tickets are bought, then active).
//  TicketsStep  – progress flag for ticket purchase.
//  LayoutStep   – progress flag for table selection.
//  MealsStep    – progress flag for meal choices.
//  PaymentsStep – progress flag for installment payments.
//  ThermoStep   – progress flag for the thermo gift.
//  ThermoPrefix – chosen honorific prefix once customized.
//  ThermoName   – chosen engraved name once customized.
type Graduate struct {
	ID           uint64    // graduates.id
	EventID      uint64    // graduates.event_id
	FullName     string    // graduates.full_name
	Email        string    // graduates.email
	Phone        string    // graduates.phone
	Career       string    // graduates.career
	Generation   string    // graduates.generation
	GroupName    *string   // graduates.group_name (nullable)
	PasswordHash string    // graduates.password_hash
	Role         string    // graduates.role
	Status       string    // graduates.status
	TicketsStep  string    // graduates.tickets_step
	LayoutStep   string    // graduates.layout_step
	MealsStep    string    // graduates.meals_step
	PaymentsStep string    // graduates.payments_step
	ThermoStep   string    // graduates.thermo_step
	ThermoPrefix *string   // graduates.thermo_prefix (nullable)
	ThermoName   *string   // graduates.thermo_name (nullable)
	CreatedAt    time.Time // graduates.created_at
	UpdatedAt    time.Time // graduates.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID         uint64     // refresh_tokens.id
	GraduateID uint64     // refresh_tokens.graduate_id
	TokenHash  string     // refresh_tokens.token_hash
	ExpiresAt  time.Time  // refresh_tokens.expires_at
	RevokedAt  *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt  time.Time  // refresh_tokens.created_at
}
