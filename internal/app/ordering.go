package app

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"sort"

	"classroom-activity-service/internal/domain"
)

// OrderQuestions returns the quiz's questions in the order the given
// student sees them. With shuffling disabled the order is ascending by
// question ID. With shuffling enabled it is a seeded Fisher-Yates
// permutation keyed by (activity seed, student id, quiz id): the same
// inputs always produce the same order, so a student resuming a session
// sees a stable sequence and no per-student order needs persisting.
//
// The permutation seed is the FNV-1a hash of the activity seed followed
// by the student and quiz IDs, fed to math/rand's Shuffle. This exact
// recipe is part of the session-stability contract; changing it reorders
// every in-flight activity.
func OrderQuestions(a domain.Activity, studentID string, questions []domain.Question) []domain.Question {
	ordered := make([]domain.Question, len(questions))
	copy(ordered, questions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	if !a.ShuffleQuestions {
		return ordered
	}

	r := rand.New(rand.NewSource(shuffleSeed(a.Seed, studentID, a.QuizID)))
	r.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})
	return ordered
}

func shuffleSeed(seed uint32, studentID, quizID string) int64 {
	h := fnv.New64a()
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], seed)
	h.Write(buf[:])
	h.Write([]byte(studentID))
	h.Write([]byte(quizID))
	return int64(h.Sum64())
}
