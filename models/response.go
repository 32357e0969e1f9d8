package models

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func ErrorResponse(err string) APIResponse {
	return APIResponse{Success: false, Error: err}
}

func MessageResponse(message string) APIResponse {
	return APIResponse{Success: true, Message: message}
}

// OutcomeResponse pairs a dispatch outcome with its notification text so
// the UI can toast without recomputing the summary.
func OutcomeResponse(outcome DispatchOutcome) APIResponse {
	return APIResponse{Success: true, Data: outcome, Message: outcome.Summary()}
}
