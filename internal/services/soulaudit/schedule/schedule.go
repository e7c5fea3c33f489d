// Package schedule computes plan start policies and per-day lock state.
// Everything here is a pure function of (now, policy, cycle start, offset);
// there is no hidden clock and no mutable state.
package schedule

import "time"

// UnlockHour is the local hour at which a new day becomes readable.
const UnlockHour = 7

// Policy maps the weekday of selection to how the plan's calendar starts.
type Policy string

const (
	// PolicyMondayCycle starts the cycle on the local Monday of selection.
	PolicyMondayCycle Policy = "monday_cycle"
	// PolicyTuesdayArchivedMonday anchors to the Monday just past; day 1 is
	// immediately unlocked and flagged archived.
	PolicyTuesdayArchivedMonday Policy = "tuesday_archived_monday"
	// PolicyWedSunOnboarding bridges a mid-week start with a day-0 primer;
	// the following Monday becomes the cycle's day 1.
	PolicyWedSunOnboarding Policy = "wed_sun_onboarding"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyMondayCycle, PolicyTuesdayArchivedMonday, PolicyWedSunOnboarding:
		return true
	}
	return false
}

// OnboardingVariant names the bridge shape for mid-week starts.
type OnboardingVariant string

const (
	VariantNone          OnboardingVariant = "none"
	VariantWednesday3Day OnboardingVariant = "wednesday_3_day"
	VariantThursday2Day  OnboardingVariant = "thursday_2_day"
	VariantFriday1Day    OnboardingVariant = "friday_1_day"
	VariantWeekendBridge OnboardingVariant = "weekend_bridge"
)

// Days returns how many primer days the variant carries.
func (v OnboardingVariant) Days() int {
	switch v {
	case VariantWednesday3Day:
		return 3
	case VariantThursday2Day:
		return 2
	case VariantFriday1Day, VariantWeekendBridge:
		return 1
	}
	return 0
}

// RestDay is the weekly day on which no new content unlocks.
type RestDay string

const (
	RestSaturday RestDay = "saturday"
	RestSunday   RestDay = "sunday"
)

// weekday returns the time.Weekday the rest day names, defaulting to Sunday.
func (r RestDay) weekday() time.Weekday {
	if r == RestSaturday {
		return time.Saturday
	}
	return time.Sunday
}

// Valid reports whether r is a known rest day. The empty value is valid and
// means the default.
func (r RestDay) Valid() bool {
	switch r {
	case "", RestSaturday, RestSunday:
		return true
	}
	return false
}

// Start is the resolved calendar for a new plan.
type Start struct {
	Policy            Policy
	StartedAt         time.Time
	CycleStartAt      time.Time
	OnboardingVariant OnboardingVariant
	OnboardingDays    int
}

// toLocal shifts a UTC instant into the caller's wall clock. The result is
// still tagged UTC; only the field values matter.
func toLocal(utc time.Time, offsetMinutes int) time.Time {
	return utc.UTC().Add(-time.Duration(offsetMinutes) * time.Minute)
}

func toUTC(local time.Time, offsetMinutes int) time.Time {
	return local.Add(time.Duration(offsetMinutes) * time.Minute)
}

func atUnlockHour(local time.Time) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d, UnlockHour, 0, 0, 0, time.UTC)
}

// mondayOf returns the Monday of the week containing local (Sunday belongs
// to the week before).
func mondayOf(local time.Time) time.Time {
	delta := int(local.Weekday()) - int(time.Monday)
	if local.Weekday() == time.Sunday {
		delta = 6
	}
	return local.AddDate(0, 0, -delta)
}

func nextMonday(local time.Time) time.Time {
	delta := 8 - int(local.Weekday())
	if local.Weekday() == time.Sunday {
		delta = 1
	}
	return local.AddDate(0, 0, delta)
}

// ResolveStart maps the caller's local weekday to the plan's start policy
// and cycle anchor. The cycle anchor is the relevant Monday at the local
// unlock hour, expressed in UTC.
func ResolveStart(nowUTC time.Time, offsetMinutes int) Start {
	localNow := toLocal(nowUTC, offsetMinutes)

	var (
		policy     Policy
		variant    = VariantNone
		cycleLocal time.Time
	)
	switch localNow.Weekday() {
	case time.Monday:
		policy = PolicyMondayCycle
		cycleLocal = atUnlockHour(localNow)
	case time.Tuesday:
		policy = PolicyTuesdayArchivedMonday
		cycleLocal = atUnlockHour(mondayOf(localNow))
	default:
		policy = PolicyWedSunOnboarding
		cycleLocal = atUnlockHour(nextMonday(localNow))
		switch localNow.Weekday() {
		case time.Wednesday:
			variant = VariantWednesday3Day
		case time.Thursday:
			variant = VariantThursday2Day
		case time.Friday:
			variant = VariantFriday1Day
		default:
			variant = VariantWeekendBridge
		}
	}

	return Start{
		Policy:            policy,
		StartedAt:         nowUTC.UTC(),
		CycleStartAt:      toUTC(cycleLocal, offsetMinutes),
		OnboardingVariant: variant,
		OnboardingDays:    variant.Days(),
	}
}

// LockedMessage is returned for days that have not reached their unlock
// instant.
const LockedMessage = "This day isn't ready yet. Your next day unlocks at 7:00 AM local time."

// DayState is the lock state of one plan day.
type DayState struct {
	Unlocked   bool
	Archived   bool
	Onboarding bool
	Message    string
}

// DayParams feeds PlanDayState. RestDay may be empty for the default.
type DayParams struct {
	Now           time.Time
	Policy        Policy
	CycleStartAt  time.Time
	DayNumber     int
	OffsetMinutes int
	RestDay       RestDay
}

// PlanDayState computes the lock state for one day. Day 0 exists only under
// the onboarding policy and is always open. Day 1 under the archived-Monday
// policy is unconditionally open and archived. Every other day unlocks at
// the local unlock hour, counting forward from the cycle anchor and skipping
// the weekly rest day.
func PlanDayState(p DayParams) DayState {
	if p.DayNumber < 0 {
		return DayState{Message: "Invalid day."}
	}
	if p.DayNumber == 0 {
		if p.Policy == PolicyWedSunOnboarding {
			return DayState{Unlocked: true, Onboarding: true}
		}
		return DayState{Message: "This onboarding day is not available for this cycle."}
	}
	if p.Policy == PolicyTuesdayArchivedMonday && p.DayNumber == 1 {
		return DayState{Unlocked: true, Archived: true}
	}

	localNow := toLocal(p.Now, p.OffsetMinutes)
	unlockLocal := unlockInstant(toLocal(p.CycleStartAt, p.OffsetMinutes), p.DayNumber, p.RestDay)
	if !localNow.Before(unlockLocal) {
		return DayState{Unlocked: true}
	}
	return DayState{Message: LockedMessage}
}

// unlockInstant advances from the cycle anchor to day number's local unlock
// time, skipping rest days. Day 1 unlocks at the anchor itself.
func unlockInstant(cycleStartLocal time.Time, dayNumber int, rest RestDay) time.Time {
	current := atUnlockHour(cycleStartLocal)
	restWeekday := rest.weekday()
	for remaining := dayNumber - 1; remaining > 0; {
		current = current.AddDate(0, 0, 1)
		if current.Weekday() == restWeekday {
			continue
		}
		remaining--
	}
	return current
}

// IsRestDay reports whether the caller's local day is the weekly rest day.
func IsRestDay(nowUTC time.Time, offsetMinutes int, rest RestDay) bool {
	return toLocal(nowUTC, offsetMinutes).Weekday() == rest.weekday()
}

// DayOverview pairs a day number with its computed state.
type DayOverview struct {
	DayNumber int
	State     DayState
}

// CurrentDay selects the reading position for an aggregate view: the most
// recently unlocked non-archived day, falling back to the most recent
// unlocked day of any flavor. Returns -1 when nothing is open. Overviews
// must be sorted by day number ascending.
func CurrentDay(overviews []DayOverview) int {
	current := -1
	fallback := -1
	for _, o := range overviews {
		if !o.State.Unlocked {
			continue
		}
		fallback = o.DayNumber
		if !o.State.Archived {
			current = o.DayNumber
		}
	}
	if current >= 0 {
		return current
	}
	return fallback
}
