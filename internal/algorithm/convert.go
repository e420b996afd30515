package algorithm

import (
	"github.com/sky-flux/flux"

	"github.com/recallkit/recall/internal/domain"
)

// toCard converts a domain schedule into the algorithm's card shape.
// A New schedule maps to a Learning card at step 0 with no memory state,
// which is how the algorithm models a first review.
func toCard(s domain.Schedule) flux.Card {
	card := flux.Card{Due: s.Due}

	switch s.State {
	case domain.New, domain.Learning:
		card.State = flux.Learning
	case domain.Relearning:
		card.State = flux.Relearning
	default:
		card.State = flux.Review
	}

	if card.State != flux.Review {
		step := s.Step
		card.Step = &step
	}
	if s.LastReview != nil {
		lr := *s.LastReview
		card.LastReview = &lr
		if s.Stability > 0 {
			st := s.Stability
			card.Stability = &st
		}
		if s.Difficulty > 0 {
			d := s.Difficulty
			card.Difficulty = &d
		}
	}
	return card
}

// fromCard converts the algorithm's card back into a domain schedule.
// Counters and queue bookkeeping are filled in by the caller.
func fromCard(c flux.Card) domain.Schedule {
	s := domain.Schedule{Due: c.Due}

	switch c.State {
	case flux.Learning:
		s.State = domain.Learning
	case flux.Relearning:
		s.State = domain.Relearning
	default:
		s.State = domain.Review
	}

	if c.Step != nil {
		s.Step = *c.Step
	}
	if c.Stability != nil {
		s.Stability = *c.Stability
	}
	if c.Difficulty != nil {
		s.Difficulty = *c.Difficulty
	}
	if c.LastReview != nil {
		lr := *c.LastReview
		s.LastReview = &lr
	}
	return s
}

func toFluxRating(r domain.Rating) flux.Rating {
	return flux.Rating(r)
}
