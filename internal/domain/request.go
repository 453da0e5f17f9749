package domain

// StartSessionRequest starts a scenario conversation.
type StartSessionRequest struct {
	Scenario   string     `json:"scenario"`
	Difficulty Difficulty `json:"difficulty"`
	UseMock    bool       `json:"use_mock,omitempty"`
}

// StartSessionResponse is returned after a session is created.
type StartSessionResponse struct {
	SessionID  string     `json:"session_id"`
	Scenario   string     `json:"scenario"`
	Difficulty Difficulty `json:"difficulty"`
	Greeting   string     `json:"greeting"`
}

// TurnRequest carries one finalized user utterance.
type TurnRequest struct {
	Text   string `json:"text"`
	Render bool   `json:"render,omitempty"`
}

// TurnResponse is the assistant reply to a turn, with the video URL when a
// render was requested and succeeded.
type TurnResponse struct {
	SessionID  string `json:"session_id"`
	Reply      string `json:"reply"`
	Model      string `json:"model"`
	ProviderID string `json:"provider_id"`
	VideoURL   string `json:"video_url,omitempty"`
	RenderJob  string `json:"render_job_id,omitempty"`
}

// SetActiveProviderRequest selects the active provider.
type SetActiveProviderRequest struct {
	ProviderID string `json:"provider_id"`
}

// RenderRequest asks for a standalone avatar video.
type RenderRequest struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url,omitempty"`
}

// RenderResponse reports a finished render.
type RenderResponse struct {
	ID     string      `json:"id"`
	URL    string      `json:"url,omitempty"`
	Status RenderState `json:"status"`
}

// MockChatRequest is a stateless mock exchange.
type MockChatRequest struct {
	Scenario string    `json:"scenario"`
	Messages []Message `json:"messages"`
}
