package question

// Question is an immutable content record. The engine only ever looks at
// ID, CorrectAnswer, AcceptableAnswers and Explanation; everything else is
// passed through to clients untouched.
type Question struct {
	ID                string   `json:"id"`
	Text              string   `json:"text"`
	CorrectAnswer     string   `json:"correctAnswer"`
	Explanation       string   `json:"explanation"`
	Category          string   `json:"category"`
	Difficulty        string   `json:"difficulty,omitempty"`
	AcceptableAnswers []string `json:"acceptableAnswers,omitempty"`
}
