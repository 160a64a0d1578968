package domain

import (
	"testing"
	"time"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name    string
		jobType JobType
		count   int
		quality Quality
		want    int64
	}{
		{"video ignores quality", JobTypeVideo, 3, QualityStandard, 90},
		{"video high same price", JobTypeVideo, 3, QualityHigh, 90},
		{"tryon flat rate", JobTypeTryon, 2, QualityHigh, 16},
		{"product high", JobTypeProduct, 4, QualityHigh, 40},
		{"product standard", JobTypeProduct, 4, QualityStandard, 16},
		{"freestyle standard", JobTypeFreestyle, 1, QualityStandard, 4},
		{"workflow high", JobTypeWorkflow, 2, QualityHigh, 20},
		{"zero count", JobTypeProduct, 0, QualityHigh, 0},
		{"negative count", JobTypeVideo, -2, QualityStandard, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cost(tc.jobType, tc.count, tc.quality); got != tc.want {
				t.Fatalf("Cost(%s, %d, %s) = %d, want %d", tc.jobType, tc.count, tc.quality, got, tc.want)
			}
		})
	}
}

func TestPartialRefund(t *testing.T) {
	tests := []struct {
		name      string
		reserved  int64
		requested int
		produced  int
		want      int64
	}{
		{"three of four", 16, 4, 3, 4},
		{"one of four", 40, 4, 1, 30},
		{"full output", 16, 4, 4, 0},
		{"no output", 16, 4, 0, 0},
		{"over-delivery", 16, 4, 5, 0},
		{"uneven division floors per unit", 10, 3, 1, 6},
		{"single requested", 30, 1, 1, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PartialRefund(tc.reserved, tc.requested, tc.produced); got != tc.want {
				t.Fatalf("PartialRefund(%d, %d, %d) = %d, want %d",
					tc.reserved, tc.requested, tc.produced, got, tc.want)
			}
		})
	}
}

func TestPriorityScoreTierPrecedence(t *testing.T) {
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(5 * 365 * 24 * time.Hour)

	// A brand-new enterprise job must still outrank a years-old free job.
	if e, f := PriorityScore(PlanEnterprise, recent), PriorityScore(PlanFree, old); e >= f {
		t.Fatalf("enterprise score %d should be below free score %d", e, f)
	}

	order := []PlanTier{PlanEnterprise, PlanPro, PlanGrowth, PlanStarter, PlanFree}
	for i := 1; i < len(order); i++ {
		hi := PriorityScore(order[i-1], recent)
		lo := PriorityScore(order[i], old)
		if hi >= lo {
			t.Fatalf("%s score %d should be below %s score %d", order[i-1], hi, order[i], lo)
		}
	}
}

func TestPriorityScoreAgeBreaksTies(t *testing.T) {
	early := time.Unix(1_700_000_000, 0)
	late := early.Add(time.Minute)
	if a, b := PriorityScore(PlanPro, early), PriorityScore(PlanPro, late); a >= b {
		t.Fatalf("older job score %d should be below newer score %d within a tier", a, b)
	}
}

func TestNormalizePlanTier(t *testing.T) {
	tests := []struct {
		in   string
		want PlanTier
	}{
		{"pro", PlanPro},
		{"  Enterprise ", PlanEnterprise},
		{"STARTER", PlanStarter},
		{"growth", PlanGrowth},
		{"free", PlanFree},
		{"", PlanFree},
		{"platinum", PlanFree},
	}
	for _, tc := range tests {
		if got := NormalizePlanTier(tc.in); got != tc.want {
			t.Fatalf("NormalizePlanTier(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
