package pump

import "math/big"

var u64Mask = new(big.Int).SetUint64(^uint64(0))

func bigU(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// truncU64 keeps the low 64 bits, matching an unsigned narrowing cast.
func truncU64(v *big.Int) uint64 {
	return new(big.Int).And(v, u64Mask).Uint64()
}

// mulDiv returns floor(a*b/c) with a 128-bit intermediate. c must be non-zero.
func mulDiv(a, b, c uint64) uint64 {
	n := new(big.Int).Mul(bigU(a), bigU(b))
	return truncU64(n.Quo(n, bigU(c)))
}

// constantProductOut is the token output of a buy against virtual reserves:
// vt - (vb*vt/(vb+in) + 1), floored at zero.
func constantProductOut(virtualSol, virtualToken, in uint64) *big.Int {
	n := new(big.Int).Mul(bigU(virtualSol), bigU(virtualToken))
	i := new(big.Int).Add(bigU(virtualSol), bigU(in))
	r := n.Quo(n, i)
	r.Add(r, big.NewInt(1))

	s := bigU(virtualToken)
	if s.Cmp(r) < 0 {
		return new(big.Int)
	}
	return s.Sub(s, r)
}
