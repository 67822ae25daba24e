// Package shuffle derives reproducible display orders from an attempt seed.
package shuffle

import "math/rand/v2"

// stream separates the question order from the option orders drawn from the same seed.
const questionStream = 0x9E3779B97F4A7C15

// Permutation returns a permutation of [0, n) determined only by seed and stream.
func Permutation(seed int64, stream uint64, n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if n < 2 {
		return order
	}
	rng := rand.New(rand.NewPCG(uint64(seed), stream))
	rng.Shuffle(n, func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

// Questions returns the display order of n questions.
func Questions(seed int64, n int) []int {
	return Permutation(seed, questionStream, n)
}

// Options returns the display order of the n options of one question.
func Options(seed int64, questionID uint, n int) []int {
	return Permutation(seed, uint64(questionID), n)
}
