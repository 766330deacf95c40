// Package score turns a finished session into points and a per-question review.
package score

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/triviaquiz/internal/domain"
)

// Compute awards domain.PointsPerQuestion for every answer matching its question's correct
// option. Unanswered questions score nothing.
func Compute(order []domain.Question, answers []*int) (int, []domain.ReviewItem) {
	var (
		total  int
		review = make([]domain.ReviewItem, 0, len(order))
	)

	for i, q := range order {
		item := domain.ReviewItem{
			Number:        i + 1,
			Question:      q.Text,
			UserAnswer:    domain.NotAnswered,
			CorrectAnswer: optionText(q, q.CorrectIndex),
		}

		if i < len(answers) && answers[i] != nil {
			item.UserAnswer = optionText(q, *answers[i])
			item.Correct = *answers[i] == q.CorrectIndex
		}

		if item.Correct {
			total += domain.PointsPerQuestion
		}
		review = append(review, item)
	}

	return total, review
}

// Max is the best possible score for n questions.
func Max(n int) int {
	return n * domain.PointsPerQuestion
}

// Percent is score as a percentage of maxScore, rounded to two places.
func Percent(score, maxScore int) decimal.Decimal {
	if maxScore <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(score)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(maxScore))).
		Round(2)
}

// Celebrate reports whether the score is at least half of maxScore.
func Celebrate(score, maxScore int) bool {
	return maxScore > 0 && 2*score >= maxScore
}

func optionText(q domain.Question, i int) string {
	if i < 0 || i >= len(q.Options) {
		return ""
	}
	return q.Options[i]
}
