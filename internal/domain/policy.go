package domain

import "time"

// Registration lifecycle:
//
//	created      -> registered | waitlisted
//	waitlisted   -> registered (promotion) | withdrawn | cancelled
//	registered   -> waitlisted (organizer demotion) | withdrawn | cancelled
//	withdrawn    terminal for the row; re-registration replaces the row
//	cancelled    terminal (tournament cancelled)
//
// CanTransition encodes the legal moves; the storage layer consults it before
// any status update so an illegal transition can never be written.
func CanTransition(from, to RegistrationStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusRegistered:
		return to == StatusWaitlisted || to == StatusWithdrawn || to == StatusCancelled
	case StatusWaitlisted:
		return to == StatusRegistered || to == StatusWithdrawn || to == StatusCancelled
	default:
		// withdrawn and cancelled are terminal
		return false
	}
}

// Age computes full years between birthdate and the reference instant.
func Age(birthdate, on time.Time) int {
	years := on.Year() - birthdate.Year()
	anniversary := birthdate.AddDate(years, 0, 0)
	if anniversary.After(on) {
		years--
	}
	return years
}

// CheckEligibility applies a category's entry rules to a player profile.
// Nil birthdate with an age-bounded category counts as an incomplete profile.
func CheckEligibility(c Category, birthdate *time.Time, gender string, profileComplete bool, now time.Time) error {
	if !profileComplete {
		return &EligibilityError{Code: EligibilityCodeProfile, Message: "player profile is incomplete"}
	}
	if c.MinAge != nil || c.MaxAge != nil {
		if birthdate == nil {
			return &EligibilityError{Code: EligibilityCodeProfile, Message: "player birthdate is required for age-restricted categories"}
		}
		age := Age(*birthdate, now)
		if c.MinAge != nil && age < *c.MinAge {
			return &EligibilityError{Code: EligibilityCodeAge, Message: "player is below the category minimum age"}
		}
		if c.MaxAge != nil && age > *c.MaxAge {
			return &EligibilityError{Code: EligibilityCodeAge, Message: "player is above the category maximum age"}
		}
	}
	if c.Gender != "" && gender != c.Gender {
		return &EligibilityError{Code: EligibilityCodeGender, Message: "player does not match the category gender restriction"}
	}
	return nil
}
