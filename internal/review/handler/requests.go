package handler

// transitionRequest is the body of POST /records/{id}/actions/{action}.
type transitionRequest struct {
	Notes string `json:"notes"`
}

// payloadEditRequest is the body of PATCH /records/{id}/payload.
type payloadEditRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// assigneeRequest is the body of POST /records/{id}/assignee.
type assigneeRequest struct {
	UserID string `json:"user_id"`
}
