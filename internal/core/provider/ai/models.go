package ai

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// recommendation is the structured verdict the model is prompted to return.
type recommendation struct {
	Pros           []string `json:"pros"`
	Cons           []string `json:"cons"`
	Suggestions    []string `json:"suggestions"`
	Recommendation string   `json:"recommendation"`
	Sources        []string `json:"sources"`
}
