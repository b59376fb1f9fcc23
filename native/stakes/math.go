package stakes

import "math/big"

const (
	maxBps           = 10_000
	minReferencedIDs = 2
)

var basisPoints = big.NewInt(maxBps)

// applyBps returns floor(amount * bps / 10000) using integer arithmetic. The
// floor keeps reward and penalty figures conservative; no rounding up ever
// occurs.
func applyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return scaled.Quo(scaled, basisPoints)
}
