// Package shard computes the bucketed secondary-index keys used to spread a
// single organization's "by type" index across parallel partitions.
package shard

import (
	"hash/fnv"
	"strconv"
)

// Key computes the global shard index key (GSIK) for an organization bucket.
// Format: "<org>#<bucket>".
func Key(org string, bucket int) string {
	return org + "#" + strconv.Itoa(bucket)
}

// TypeKey computes the type-scoped shard key (TGSIK).
// Format: "<org>#<type>#<bucket>".
func TypeKey(org, typ string, bucket int) string {
	return org + "#" + typ + "#" + strconv.Itoa(bucket)
}

// Keys enumerates every shard key of an organization, bucket 0 through
// maxGSIK-1. Readers must use the same maxGSIK as writers for the
// enumeration to cover every record.
func Keys(org string, maxGSIK int) []string {
	if maxGSIK < 1 {
		return nil
	}
	keys := make([]string, maxGSIK)
	for bucket := 0; bucket < maxGSIK; bucket++ {
		keys[bucket] = Key(org, bucket)
	}
	return keys
}

// Bucket predicts a bucket for a node identifier.
// With maxGSIK<=1 every node lands in bucket 0.
func Bucket(node string, maxGSIK int) int {
	if maxGSIK <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(node))
	return int(h.Sum32() % uint32(maxGSIK))
}
