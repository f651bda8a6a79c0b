package executor

import (
	"fmt"
	"math"

	"github.com/argmaster/cssfinder/internal/model"
)

// deduceDimensions derives the subsystem shape (depth, quantity) from the
// total state size when a task does not pin it explicitly.
//
// FSnQd states decompose as quantity qudits of prime depth, so the size must
// be an exact prime power. SBiPa states are bipartite: a perfect square
// splits evenly, otherwise the smallest prime factor becomes the first
// subsystem. The G3PaE3qD and G4PaE3qD modes have no unique decomposition
// and require explicit dimensions.
func deduceDimensions(mode model.Mode, size int) (depth, quantity int, err error) {
	if size < 2 {
		return 0, 0, fmt.Errorf("state size %d is too small to decompose", size)
	}
	switch mode {
	case model.ModeFSnQd:
		for p := 2; p <= size; p++ {
			if !isPrime(p) {
				continue
			}
			if k, ok := exactPower(size, p); ok {
				return p, k, nil
			}
		}
		return 0, 0, fmt.Errorf("state size %d is not a prime power", size)

	case model.ModeSBiPa:
		if r := int(math.Sqrt(float64(size))); r*r == size {
			return r, r, nil
		}
		for p := 2; p <= size; p++ {
			if isPrime(p) && size%p == 0 {
				return p, size / p, nil
			}
		}
		return 0, 0, fmt.Errorf("state size %d has no prime factor", size)

	default:
		return 0, 0, fmt.Errorf("mode %q requires explicit depth and quantity", mode)
	}
}

// exactPower reports whether n == base**k for some k >= 1, returning k.
func exactPower(n, base int) (int, bool) {
	k := 0
	for n > 1 {
		if n%base != 0 {
			return 0, false
		}
		n /= base
		k++
	}
	return k, k >= 1
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}
