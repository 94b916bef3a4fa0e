package types

// CommandRequest is a moderator accept/deny command delivered by the
// command surface.
type CommandRequest struct {
	Platform    string `json:"platform"`
	SpaceID     string `json:"space_id"`
	ApplicantID string `json:"applicant_id"`
}

// CommandResponse is returned for both accept and deny.  Ticket is set
// only for accept; Message is the templated text relayed to the staging
// space.
type CommandResponse struct {
	OK         bool   `json:"ok"`
	Ticket     string `json:"ticket,omitempty"`
	Message    string `json:"message"`
	ServerTime string `json:"server_time"`
}

// JoinRequestEvent is an inbound join request from the event surface.
// Text is the literal request message; the ticket is expected somewhere
// inside it, not necessarily as the whole string.
type JoinRequestEvent struct {
	Platform    string `json:"platform"`
	SpaceID     string `json:"space_id"`
	ApplicantID string `json:"applicant_id"`
	RequestID   string `json:"request_id"`
	Text        string `json:"text"`
}

// JoinResponse reports the admission decision taken for a join request.
type JoinResponse struct {
	OK         bool   `json:"ok"`
	Admitted   bool   `json:"admitted"`
	Reason     string `json:"reason,omitempty"`
	ReasonText string `json:"reason_text,omitempty"`
	ServerTime string `json:"server_time"`
}
