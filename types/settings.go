//nolint:revive // types is a common Go package naming convention
package types

// Persisted setting names for a publish step.
const (
	SettingMessageKind = "MessageKind"
	SettingMessage     = "Message"
	SettingTimeout     = "Timeout"
)

// StepSettings is the persisted state of a publish step.
// The serialization format is owned by the host; these are plain fields.
type StepSettings struct {
	// MessageKind is the kind name, e.g. "Json" or "IntegerValue".
	MessageKind string `yaml:"message_kind" json:"message_kind"`
	// Message is the raw message text, stored verbatim.
	Message string `yaml:"message" json:"message"`
	// TimeoutMillis bounds wait and send. 0 means no deadline.
	TimeoutMillis int `yaml:"timeout_ms" json:"timeout_ms"`
}
