package domain

import "time"

// Per-image base prices in credits.
const (
	videoCreditsPerItem = 30
	tryonCreditsPerItem = 8
	highCreditsPerItem  = 10
	stdCreditsPerItem   = 4
)

// Cost computes the credit price of a generation request. It is a pure
// function of (type, count, quality); quality only affects the generic image
// types, never try-on or video.
func Cost(jobType JobType, count int, quality Quality) int64 {
	if count < 1 {
		return 0
	}
	n := int64(count)
	switch jobType {
	case JobTypeVideo:
		return n * videoCreditsPerItem
	case JobTypeTryon:
		return n * tryonCreditsPerItem
	default:
		if quality == QualityHigh {
			return n * highCreditsPerItem
		}
		return n * stdCreditsPerItem
	}
}

// PartialRefund computes the credit share returned when a job produced fewer
// outputs than requested but more than zero.
func PartialRefund(reserved int64, requested, produced int) int64 {
	if requested <= 0 || produced <= 0 || produced >= requested {
		return 0
	}
	return (reserved / int64(requested)) * int64(requested-produced)
}

// tierWeight spaces plan tiers far enough apart that any higher-tier job is
// claimed before any lower-tier job regardless of age. The weight multiplier
// dwarfs unix timestamps through at least the next century.
const tierWeightSpan = int64(100_000_000_000)

// PriorityScore derives the claim-ordering key for a job enqueued by the given
// tier at the given time. Lower scores claim first.
func PriorityScore(tier PlanTier, at time.Time) int64 {
	return tier.weight()*tierWeightSpan + at.Unix()
}
