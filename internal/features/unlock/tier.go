// Package unlock maps a match's message count to how much of a partner's
// profile is revealed.
package unlock

const (
	TierHidden    = 0
	TierBasics    = 1 // age + city
	TierPhoto     = 2 // + photo at 50% obscurity
	TierInterests = 3 // + interests + bio, photo at 25%
	TierFull      = 4 // everything, photo clear

	MaxTier = TierFull
)

// thresholds[i] is the inclusive lower message count for tier i.
var thresholds = [...]int64{0, 20, 60, 100, 150}

var obscurity = [...]int{100, 100, 50, 25, 0}

// Tier returns the reveal tier for a cumulative message count.
func Tier(messageCount int64) int {
	tier := TierHidden
	for i, min := range thresholds {
		if messageCount >= min {
			tier = i
		}
	}
	return tier
}

// Threshold returns the message count needed to reach tier.
func Threshold(tier int) int64 {
	if tier <= TierHidden {
		return 0
	}
	if tier >= MaxTier {
		return thresholds[MaxTier]
	}
	return thresholds[tier]
}

// NextThreshold returns how many more messages are needed for the next tier,
// or 0 once fully unlocked.
func NextThreshold(messageCount int64) int64 {
	tier := Tier(messageCount)
	if tier >= MaxTier {
		return 0
	}
	if messageCount < 0 {
		messageCount = 0
	}
	return thresholds[tier+1] - messageCount
}

// Obscurity is the photo blur percentage at a tier. 100 means not shown.
func Obscurity(tier int) int {
	if tier < 0 {
		tier = 0
	}
	if tier > MaxTier {
		tier = MaxTier
	}
	return obscurity[tier]
}

// Crossed reports whether going from before to after messages reaches a new tier.
func Crossed(before, after int64) (int, bool) {
	t := Tier(after)
	return t, t > Tier(before)
}
