package partition

import "github.com/spaolacci/murmur3"

// Count is the fixed number of logical user partitions.
// Must not change once assignments exist.
const Count = 256

// For returns the partition ID for a given user ID.
// Stable and deterministic: same userID always maps to the same partition.
func For(userID string) int {
	return int(murmur3.Sum32([]byte(userID)) % Count)
}

// Shard maps a user onto one of n workers via its partition.
// A user always lands on the same worker for a given n.
func Shard(userID string, n int) int {
	if n <= 1 {
		return 0
	}
	return For(userID) % n
}
