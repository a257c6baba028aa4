package question

import (
	"errors"
	"math/rand"
	"sort"
)

// CategoryRandom draws from every bank at once.
const CategoryRandom = "random"

var ErrUnknownCategory = errors.New("unknown question category")

// Service hands out random question sets from the embedded banks.
type Service struct {
	bank map[string][]Question
}

func NewService() (*Service, error) {
	bank, err := loadBank()
	if err != nil {
		return nil, err
	}
	return &Service{bank: bank}, nil
}

// Categories returns every available category name, sorted.
func (s *Service) Categories() []string {
	out := make([]string, 0, len(s.bank))
	for c := range s.bank {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Draw returns up to count random questions for the category. The "random"
// category mixes all banks together.
func (s *Service) Draw(category string, count int) ([]Question, error) {
	var pool []Question
	if category == CategoryRandom {
		for _, qs := range s.bank {
			pool = append(pool, qs...)
		}
	} else {
		qs, ok := s.bank[category]
		if !ok {
			return nil, ErrUnknownCategory
		}
		pool = append(pool, qs...)
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool, nil
}
