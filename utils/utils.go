package utils

import (
	"crypto/md5"
	"math/big"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// GenUuidFromStrings derives a stable UUID from the given parts. The parts
// are sorted first so callers do not need to agree on ordering.
func GenUuidFromStrings(parts ...string) string {
	if len(parts) == 0 {
		parts = append(parts, uuid.Nil.String())
	}

	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)

	sum := md5.Sum([]byte(strings.Join(sorted, "")))
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.FromBytesOrNil(sum[:]).String()
}

// Isqrt returns the integer square root of d, which must be a non-negative
// integral decimal.
func Isqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	root := new(big.Int).Sqrt(d.Truncate(0).BigInt())
	return decimal.NewFromBigInt(root, 0)
}
