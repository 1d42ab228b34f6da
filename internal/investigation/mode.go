package investigation

// Mode is the one-shot decision that gates the optional tiers.
type Mode string

const (
	ModeUndetermined Mode = "undetermined"
	ModeSmart        Mode = "smart"
	ModeFull         Mode = "full"
)

// smartEmailThreshold is the number of verified email aggregates at
// which enumeration switches to smart mode: with two breach-verified
// addresses in hand, speculative pattern generation and public-record
// brute force stop paying for their cost and block risk.
const smartEmailThreshold = 2

// decideMode maps the verified-email count to a terminal mode.
func decideMode(verifiedEmails int) Mode {
	if verifiedEmails >= smartEmailThreshold {
		return ModeSmart
	}
	return ModeFull
}
