// Package shuffle produces question-order permutations, either uniformly
// random or reproducible from a seed so that every player in a group sees
// the same order without any live sync.
package shuffle

import (
	"hash/fnv"
	"math/rand"
)

// Identity returns [0, 1, ..., n-1].
func Identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// Random returns a uniform Fisher-Yates permutation of [0, n).
func Random(n int) []int {
	order := Identity(n)
	for i := n - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Seeded returns a permutation of [0, n) driven by a linear-congruential
// generator. The same (n, seed) pair yields the same permutation on any
// platform: all arithmetic is fixed-width and locale-independent.
func Seeded(n int, seed uint32) []int {
	order := Identity(n)
	s := uint64(seed)
	for i := n - 1; i > 0; i-- {
		s = (1103515245*s + 12345) % 2147483648
		j := int(s % uint64(i+1))
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// HashSeed turns an arbitrary string (typically a group code) into a stable
// 32-bit shuffle seed using FNV-1a.
func HashSeed(text string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	return h.Sum32()
}
