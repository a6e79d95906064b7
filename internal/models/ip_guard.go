package models

import "time"

// LockDuration is how long an automatic lock lasts before it becomes eligible for auto-unlock.
const LockDuration = 7 * 24 * time.Hour

// LockReason identifies why an account is locked.
type LockReason string

const (
	LockReasonNone      LockReason = ""
	LockReasonAutomatic LockReason = "automatic"
	LockReasonManual    LockReason = "manual"
)

// LockState is the unified view over the automatic and manual lock flags.
// Only one reason is active at a time; LockedAt is set for automatic locks only.
type LockState struct {
	Reason   LockReason
	LockedAt *time.Time
}

// Unlocked returns the zero lock state.
func Unlocked() LockState {
	return LockState{}
}

// LockedAutomatic returns an automatic lock taken at the given time.
func LockedAutomatic(at time.Time) LockState {
	t := at.UTC()
	return LockState{Reason: LockReasonAutomatic, LockedAt: &t}
}

// LockedManual returns an administrative lock with no expiry.
func LockedManual() LockState {
	return LockState{Reason: LockReasonManual}
}

func (s LockState) IsLocked() bool {
	return s.Reason != LockReasonNone
}

func (s LockState) IsAutomatic() bool {
	return s.Reason == LockReasonAutomatic
}

func (s LockState) IsManual() bool {
	return s.Reason == LockReasonManual
}

// Decision is the outcome of evaluating a login origin.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionLock  Decision = "lock"
)

// UnlockOutcome is the result of an auto-unlock check.
type UnlockOutcome string

const (
	UnlockOutcomeNotLocked    UnlockOutcome = "not_locked"
	UnlockOutcomeStillLocked  UnlockOutcome = "still_locked"
	UnlockOutcomeAutoUnlocked UnlockOutcome = "auto_unlocked"
)

// NotificationKind selects the message template sent to an account holder.
type NotificationKind string

const (
	NotificationWarn       NotificationKind = "warn"
	NotificationLock       NotificationKind = "lock"
	NotificationUnlock     NotificationKind = "unlock"
	NotificationAutoUnlock NotificationKind = "auto_unlock"
)

// LockedAccount is a row in the locked accounts view.
type LockedAccount struct {
	UserID   string     `json:"user_id"`
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Reason   LockReason `json:"reason"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
}

// AccountAddressLog pairs an account with its recorded login origins.
type AccountAddressLog struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Addresses []string   `json:"addresses"`
	LockedAt  *time.Time `json:"locked_at,omitempty"`
}
