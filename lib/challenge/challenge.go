package challenge

// Type is the challenge type tag a configuration server declares for a
// descriptor. Besides None and Default, any other value names a third-party
// provider rendered by a delegated widget.
type Type string

const (
	TypeNone    Type = "none"
	TypeDefault Type = "Default"
)

// Delegated reports whether challenges of this type are rendered by a
// third-party widget.
func (t Type) Delegated() bool {
	return t != "" && t != TypeNone && t != TypeDefault
}

// Descriptor is the challenge configuration fetched from the server for one
// dialog session. It is never cached or reused across sessions.
type Descriptor struct {
	Type         Type   `json:"type"`                   // Which challenge variant to present
	CaptchaID    string `json:"captchaId,omitempty"`    // Identifier needed to redeem the challenge server-side
	CaptchaImage string `json:"captchaImage,omitempty"` // Base64 encoded PNG, only set for Default challenges
	ClientID     string `json:"clientId,omitempty"`     // Site key for delegated widgets
	SubType      string `json:"subType,omitempty"`
	Scene        string `json:"scene,omitempty"`
	AppKey       string `json:"appKey,omitempty"`
}
