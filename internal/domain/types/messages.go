package types

// EnvelopeType discriminates the two wire forms described in spec.md §4.4:
// "initial" carries the X3DH+KEM prekey references; "subsequent" does not.
type EnvelopeType string

const (
	EnvelopeInitial    EnvelopeType = "initial"
	EnvelopeSubsequent EnvelopeType = "subsequent"
)

// EnvelopeVersion is the only wire version accepted by this implementation.
const EnvelopeVersion = 1

// Envelope is the transport container routed by the relay (spec.md §3.1).
// Body carries the ciphertext base64-encoded; PreKey is only set on initial
// envelopes.
type Envelope struct {
	Version       int           `json:"version"`
	Sender        Username      `json:"sender"`
	Recipient     Username      `json:"recipient"`
	SessionID     string        `json:"session_id"`
	Type          EnvelopeType  `json:"type"`
	Body          string        `json:"body"`
	TimestampMs   int64         `json:"timestamp_ms"`
	Header        RatchetHeader `json:"header"`
	PreKey        *PreKeyMessage `json:"pre_key,omitempty"`
	AssociatedData []byte       `json:"associated_data,omitempty"`
}

// DecryptedMessage is what the decrypt pipeline returns to a daemon handler.
type DecryptedMessage struct {
	From        Username `json:"from"`
	To          Username `json:"to"`
	Plaintext   []byte   `json:"plaintext"`
	TimestampMs int64    `json:"timestamp_ms"`
}

// MessageKind discriminates the typed application-layer message union
// (spec.md §3.1, §4.4).
type MessageKind string

const (
	KindChatPrompt     MessageKind = "chat.prompt"
	KindChatReply      MessageKind = "chat.reply"
	KindTelemetryReport MessageKind = "telemetry.report"
	KindControlPing    MessageKind = "control.ping"
)

// ChatPrompt is sent by a user to the AI-agent satellite (out of scope); the
// codec still defines and validates its wire shape.
type ChatPrompt struct {
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
	From      string `json:"from"`
	CreatedAt int64  `json:"created_at"`
}

// ChatReply correlates with a ChatPrompt via the same RequestID.
type ChatReply struct {
	RequestID string `json:"request_id"`
	Reply     string `json:"reply"`
	From      string `json:"from"`
	CreatedAt int64  `json:"created_at"`
}

// HostMetrics is the passive telemetry payload accepted by the relay's
// diagnostics sink (collection itself is out of scope, §1).
type HostMetrics struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemPercent  float64 `json:"mem_percent"`
	LoadAverage float64 `json:"load_average"`
}

// TelemetryReport wraps a HostMetrics snapshot plus a relay snapshot for
// transport between the telemetry satellite and the AI agent satellite.
type TelemetryReport struct {
	ReportID     string      `json:"report_id"`
	Source       string      `json:"source"`
	RelaySnapshot string     `json:"relay_snapshot"`
	HostMetrics  HostMetrics `json:"host_metrics"`
	CreatedAt    int64       `json:"created_at"`
}

// ControlPing is a liveness/keepalive application message.
type ControlPing struct {
	CreatedAt int64 `json:"created_at"`
}

// AppMessage is the discriminated union of the four application-message
// variants. Exactly one of the typed fields is populated, matching Kind.
type AppMessage struct {
	Kind      MessageKind      `json:"kind"`
	Prompt    *ChatPrompt      `json:"prompt,omitempty"`
	Reply     *ChatReply       `json:"reply,omitempty"`
	Telemetry *TelemetryReport `json:"telemetry,omitempty"`
	Ping      *ControlPing     `json:"ping,omitempty"`
}
