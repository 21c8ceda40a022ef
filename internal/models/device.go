package models

// Notification actions carried by monitoring payloads.
const (
	ActionConnect       = "Connect"
	ActionDisconnect    = "Disconnect"
	ActionFailedConnect = "FailedConnect"
)

// Payload is a connect/disconnect notification reassembled from a traced
// PUBLISH. Fields not needed for state tracking are ignored on decode.
type Payload struct {
	Action     string `json:"Action"`
	Time       string `json:"Time"`
	ClientID   string `json:"ClientID"`
	ClientAddr string `json:"ClientAddr,omitempty"`
	CloseCode  *int   `json:"CloseCode,omitempty"`
	Reason     string `json:"Reason,omitempty"`
}

// HasCloseCode reports whether the payload carries the given close code.
func (p *Payload) HasCloseCode(code int) bool {
	return p.CloseCode != nil && *p.CloseCode == code
}

// DeviceState is the most recently known connection status of one device
// as seen by one subscription group.
type DeviceState struct {
	ClientID    string     `json:"clientId"`
	IsConnected bool       `json:"isConnected"`
	Source      Provenance `json:"source"`
}
