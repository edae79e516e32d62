package dto

// SolveQuizRequest is the body of POST /quiz.
type SolveQuizRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// SolveQuizResponse reports the outcome of a solved quiz. Submitted
// states whether the answer is known to have reached the platform, so
// callers never face an ambiguous "did it submit?" state.
type SolveQuizResponse struct {
	Answer    interface{} `json:"answer"`
	Submitted bool        `json:"submitted"`
	Correct   bool        `json:"correct"`
	Attempts  int         `json:"attempts"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
