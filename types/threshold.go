package types

// RequiredSignatures computes how many valid attestations a market needs
// before finalization. The per-market threshold is a percentage of the
// participants staked on the proposed outcome, rounded up, and the global
// minimum applies on top. With no eligible participants the base requirement
// degenerates to one so the global floor still governs.
func RequiredSignatures(eligibleParticipants int, thresholdPercent uint8, minGlobal int) int {
	base := 1
	if eligibleParticipants > 0 {
		base = (eligibleParticipants*int(thresholdPercent) + 99) / 100
	}
	if minGlobal > base {
		return minGlobal
	}
	return base
}
