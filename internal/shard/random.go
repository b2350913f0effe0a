package shard

import "math/rand/v2"

// RandomBucket draws a write-time bucket uniformly from [0, maxGSIK).
// Unlike the rest of this package it is not deterministic.
func RandomBucket(maxGSIK int) int {
	if maxGSIK <= 1 {
		return 0
	}
	return rand.IntN(maxGSIK)
}
