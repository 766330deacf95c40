package quiz

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/victornm/triviaquiz/internal/domain"
)

var defaultBank = []domain.Question{
	{Text: "What is the capital of France?", Options: []string{"Berlin", "Madrid", "Paris", "Rome"}, CorrectIndex: 2},
	{Text: "Which planet is known as the Red Planet?", Options: []string{"Earth", "Mars", "Jupiter", "Venus"}, CorrectIndex: 1},
	{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1},
	{Text: "Who wrote 'Romeo and Juliet'?", Options: []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, CorrectIndex: 1},
	{Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectIndex: 3},
	{Text: "Which year did World War II end?", Options: []string{"1943", "1945", "1950", "1939"}, CorrectIndex: 1},
	{Text: "What is the chemical symbol for water?", Options: []string{"H2O", "CO2", "O2", "NaCl"}, CorrectIndex: 0},
	{Text: "Which animal is known as the 'Ship of the Desert'?", Options: []string{"Horse", "Camel", "Elephant", "Donkey"}, CorrectIndex: 1},
	{Text: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, CorrectIndex: 2},
	{Text: "What is the square root of 64?", Options: []string{"6", "7", "8", "9"}, CorrectIndex: 2},
}

// DefaultBank returns a copy of the built-in ten questions.
func DefaultBank() []domain.Question {
	bank := make([]domain.Question, 0, len(defaultBank))
	for _, q := range defaultBank {
		q.Options = slices.Clone(q.Options)
		bank = append(bank, q)
	}
	return bank
}

// LoadBank reads a JSON array of questions ({"question", "options", "correct"}) from path.
func LoadBank(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}

	var bank []domain.Question
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("decode question bank %s: %w", path, err)
	}

	if err := ValidateBank(bank); err != nil {
		return nil, fmt.Errorf("question bank %s: %w", path, err)
	}

	return bank, nil
}

// ValidateBank checks that every question has exactly domain.OptionCount options and a
// correct index pointing at one of them.
func ValidateBank(bank []domain.Question) error {
	if len(bank) == 0 {
		return fmt.Errorf("no questions")
	}

	for i, q := range bank {
		if q.Text == "" {
			return fmt.Errorf("question %d: empty text", i+1)
		}
		if len(q.Options) != domain.OptionCount {
			return fmt.Errorf("question %d: want %d options, got %d", i+1, domain.OptionCount, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("question %d: correct index %d out of range", i+1, q.CorrectIndex)
		}
	}

	return nil
}
