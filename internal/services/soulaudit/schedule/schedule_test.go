package schedule

import (
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
func mondayUTC(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestResolveStartPolicies(t *testing.T) {
	tests := []struct {
		name        string
		now         time.Time
		wantPolicy  Policy
		wantVariant OnboardingVariant
		wantDays    int
	}{
		{"monday", mondayUTC(10, 0), PolicyMondayCycle, VariantNone, 0},
		{"tuesday", mondayUTC(10, 0).AddDate(0, 0, 1), PolicyTuesdayArchivedMonday, VariantNone, 0},
		{"wednesday", mondayUTC(10, 0).AddDate(0, 0, 2), PolicyWedSunOnboarding, VariantWednesday3Day, 3},
		{"thursday", mondayUTC(10, 0).AddDate(0, 0, 3), PolicyWedSunOnboarding, VariantThursday2Day, 2},
		{"friday", mondayUTC(10, 0).AddDate(0, 0, 4), PolicyWedSunOnboarding, VariantFriday1Day, 1},
		{"saturday", mondayUTC(10, 0).AddDate(0, 0, 5), PolicyWedSunOnboarding, VariantWeekendBridge, 1},
		{"sunday", mondayUTC(10, 0).AddDate(0, 0, 6), PolicyWedSunOnboarding, VariantWeekendBridge, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start := ResolveStart(tc.now, 0)
			if start.Policy != tc.wantPolicy {
				t.Fatalf("policy = %s, want %s", start.Policy, tc.wantPolicy)
			}
			if start.OnboardingVariant != tc.wantVariant {
				t.Fatalf("variant = %s, want %s", start.OnboardingVariant, tc.wantVariant)
			}
			if start.OnboardingDays != tc.wantDays {
				t.Fatalf("onboarding days = %d, want %d", start.OnboardingDays, tc.wantDays)
			}
			if !start.StartedAt.Equal(tc.now) {
				t.Fatalf("startedAt = %v, want %v", start.StartedAt, tc.now)
			}
		})
	}
}

func TestResolveStartCycleAnchors(t *testing.T) {
	mondayAnchor := mondayUTC(7, 0)

	// Monday selection anchors to that Monday.
	if got := ResolveStart(mondayUTC(10, 0), 0).CycleStartAt; !got.Equal(mondayAnchor) {
		t.Fatalf("monday anchor = %v, want %v", got, mondayAnchor)
	}

	// Tuesday anchors back to the Monday just past.
	if got := ResolveStart(mondayUTC(10, 0).AddDate(0, 0, 1), 0).CycleStartAt; !got.Equal(mondayAnchor) {
		t.Fatalf("tuesday anchor = %v, want %v", got, mondayAnchor)
	}

	// Wednesday through Sunday anchor to the following Monday.
	nextAnchor := mondayAnchor.AddDate(0, 0, 7)
	for delta := 2; delta <= 6; delta++ {
		if got := ResolveStart(mondayUTC(10, 0).AddDate(0, 0, delta), 0).CycleStartAt; !got.Equal(nextAnchor) {
			t.Fatalf("day+%d anchor = %v, want %v", delta, got, nextAnchor)
		}
	}
}

func TestResolveStartHonorsOffset(t *testing.T) {
	// 2026-03-02 01:00 UTC with offset +300 (UTC-5) is still Sunday local.
	start := ResolveStart(mondayUTC(1, 0), 300)
	if start.Policy != PolicyWedSunOnboarding {
		t.Fatalf("policy = %s, want %s", start.Policy, PolicyWedSunOnboarding)
	}
	if start.OnboardingVariant != VariantWeekendBridge {
		t.Fatalf("variant = %s, want %s", start.OnboardingVariant, VariantWeekendBridge)
	}
	// Cycle anchor is Monday 07:00 local = 12:00 UTC.
	want := mondayUTC(12, 0)
	if !start.CycleStartAt.Equal(want) {
		t.Fatalf("anchor = %v, want %v", start.CycleStartAt, want)
	}
}

func TestPlanDayStateUnlockBoundary(t *testing.T) {
	cycleStart := mondayUTC(7, 0)

	at := func(now time.Time, day int) DayState {
		return PlanDayState(DayParams{
			Now: now, Policy: PolicyMondayCycle,
			CycleStartAt: cycleStart, DayNumber: day,
		})
	}

	if st := at(mondayUTC(6, 59), 1); st.Unlocked {
		t.Fatal("day 1 unlocked at 06:59")
	} else if st.Message != LockedMessage {
		t.Fatalf("locked message = %q", st.Message)
	}
	if st := at(mondayUTC(7, 0), 1); !st.Unlocked {
		t.Fatal("day 1 locked at exactly 07:00")
	}
	if st := at(mondayUTC(23, 0), 2); st.Unlocked {
		t.Fatal("day 2 unlocked on day 1")
	}
	if st := at(mondayUTC(7, 0).AddDate(0, 0, 1), 2); !st.Unlocked {
		t.Fatal("day 2 locked at Tuesday 07:00")
	}
}

func TestPlanDayStateOffsetShiftsBoundary(t *testing.T) {
	// Offset -60 (UTC+1): local 07:00 is 06:00 UTC.
	start := ResolveStart(mondayUTC(10, 0), -60)
	st := PlanDayState(DayParams{
		Now: mondayUTC(5, 59), Policy: start.Policy,
		CycleStartAt: start.CycleStartAt, DayNumber: 1, OffsetMinutes: -60,
	})
	if st.Unlocked {
		t.Fatal("day 1 unlocked before local 07:00")
	}
	st = PlanDayState(DayParams{
		Now: mondayUTC(6, 0), Policy: start.Policy,
		CycleStartAt: start.CycleStartAt, DayNumber: 1, OffsetMinutes: -60,
	})
	if !st.Unlocked {
		t.Fatal("day 1 locked at local 07:00")
	}
}

func TestPlanDayStateArchivedMonday(t *testing.T) {
	st := PlanDayState(DayParams{
		Now:    mondayUTC(0, 0), // before any unlock hour
		Policy: PolicyTuesdayArchivedMonday, CycleStartAt: mondayUTC(7, 0), DayNumber: 1,
	})
	if !st.Unlocked || !st.Archived {
		t.Fatalf("archived monday day 1 = %+v, want unlocked+archived", st)
	}
}

func TestPlanDayStateOnboarding(t *testing.T) {
	cycleStart := mondayUTC(7, 0).AddDate(0, 0, 7)

	st := PlanDayState(DayParams{
		Now: mondayUTC(10, 0).AddDate(0, 0, 2), // Wednesday
		Policy: PolicyWedSunOnboarding, CycleStartAt: cycleStart, DayNumber: 0,
	})
	if !st.Unlocked || !st.Onboarding {
		t.Fatalf("onboarding day 0 = %+v, want unlocked+onboarding", st)
	}

	// Day 0 outside the onboarding policy does not exist.
	st = PlanDayState(DayParams{
		Now: mondayUTC(10, 0), Policy: PolicyMondayCycle,
		CycleStartAt: mondayUTC(7, 0), DayNumber: 0,
	})
	if st.Unlocked || st.Message == "" {
		t.Fatalf("non-onboarding day 0 = %+v, want locked with message", st)
	}

	// Day 1 stays locked until the following Monday's unlock hour.
	st = PlanDayState(DayParams{
		Now: mondayUTC(10, 0).AddDate(0, 0, 2), Policy: PolicyWedSunOnboarding,
		CycleStartAt: cycleStart, DayNumber: 1,
	})
	if st.Unlocked {
		t.Fatal("cycle day 1 unlocked during onboarding week")
	}
	st = PlanDayState(DayParams{
		Now: cycleStart, Policy: PolicyWedSunOnboarding,
		CycleStartAt: cycleStart, DayNumber: 1,
	})
	if !st.Unlocked {
		t.Fatal("cycle day 1 locked at the following Monday 07:00")
	}
}

func TestPlanDayStateNegativeDay(t *testing.T) {
	st := PlanDayState(DayParams{
		Now: mondayUTC(10, 0), Policy: PolicyMondayCycle,
		CycleStartAt: mondayUTC(7, 0), DayNumber: -1,
	})
	if st.Unlocked || st.Message != "Invalid day." {
		t.Fatalf("negative day = %+v", st)
	}
}

func TestRestDaySuspendsUnlocks(t *testing.T) {
	cycleStart := mondayUTC(7, 0)

	// With Saturday rest, day 6 skips Saturday and lands on Sunday.
	saturday := mondayUTC(7, 0).AddDate(0, 0, 5)
	sunday := saturday.AddDate(0, 0, 1)

	st := PlanDayState(DayParams{
		Now: saturday, Policy: PolicyMondayCycle, CycleStartAt: cycleStart,
		DayNumber: 6, RestDay: RestSaturday,
	})
	if st.Unlocked {
		t.Fatal("day 6 unlocked on the rest day")
	}
	st = PlanDayState(DayParams{
		Now: sunday, Policy: PolicyMondayCycle, CycleStartAt: cycleStart,
		DayNumber: 6, RestDay: RestSaturday,
	})
	if !st.Unlocked {
		t.Fatal("day 6 still locked the day after the rest day")
	}

	// Default rest day (Sunday): day 7 skips Sunday and lands on Monday.
	nextMon := mondayUTC(7, 0).AddDate(0, 0, 7)
	st = PlanDayState(DayParams{
		Now: nextMon.AddDate(0, 0, -1), Policy: PolicyMondayCycle,
		CycleStartAt: cycleStart, DayNumber: 7,
	})
	if st.Unlocked {
		t.Fatal("day 7 unlocked on the default Sunday rest day")
	}
	st = PlanDayState(DayParams{
		Now: nextMon, Policy: PolicyMondayCycle,
		CycleStartAt: cycleStart, DayNumber: 7,
	})
	if !st.Unlocked {
		t.Fatal("day 7 locked after the rest day passed")
	}
}

func TestIsRestDay(t *testing.T) {
	sunday := mondayUTC(12, 0).AddDate(0, 0, 6)
	if !IsRestDay(sunday, 0, RestSunday) {
		t.Fatal("sunday not detected as rest day")
	}
	if IsRestDay(sunday, 0, RestSaturday) {
		t.Fatal("sunday detected as saturday rest day")
	}
	// Offset can move the local day across the date line.
	if IsRestDay(sunday, 0, "") != true {
		t.Fatal("empty rest day should default to sunday")
	}
}

func TestCurrentDaySelection(t *testing.T) {
	unlocked := DayState{Unlocked: true}
	archived := DayState{Unlocked: true, Archived: true}
	locked := DayState{Message: LockedMessage}

	tests := []struct {
		name string
		days []DayOverview
		want int
	}{
		{"mid-cycle", []DayOverview{{1, unlocked}, {2, unlocked}, {3, locked}}, 2},
		{"archived only", []DayOverview{{1, archived}, {2, locked}}, 1},
		{"archived plus current", []DayOverview{{1, archived}, {2, unlocked}, {3, locked}}, 2},
		{"onboarding day zero", []DayOverview{{0, DayState{Unlocked: true, Onboarding: true}}, {1, locked}}, 0},
		{"nothing open", []DayOverview{{1, locked}, {2, locked}}, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CurrentDay(tc.days); got != tc.want {
				t.Fatalf("CurrentDay = %d, want %d", got, tc.want)
			}
		})
	}
}
