package collateral

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	precision   = mustBigInt("1000000000000000000") // 1e18 fixed point
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulDivFloor computes a*b/den truncated toward zero. Used wherever value is
// counted in the account holder's favor so rounding never inflates it.
func mulDivFloor(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, den)
}

// mulDivCeil computes a*b/den rounded up. Used wherever value is counted
// against the account holder so rounding never understates it.
func mulDivCeil(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	remainder := new(big.Int)
	quotient, remainder := product.QuoRem(product, den, remainder)
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}

// pow10 returns 10^n as a big integer.
func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
