package domain

// Message is the transport envelope for a single reading.
type Message struct {
	ID              string `json:"id"`
	SensorName      string `json:"sensor_name"`
	Body            []byte `json:"body"`
	ContentType     string `json:"content_type"`
	ContentEncoding string `json:"content_encoding"`
	// Properties carries custom application properties (alert, priority).
	Properties map[string]string `json:"properties,omitempty"`
	// Reading is the decoded payload, kept for transports that map values
	// natively (Influx fields, OPC UA nodes) instead of shipping Body.
	Reading Reading `json:"reading"`
}

const (
	ContentTypeJSON = "application/json"
	EncodingUTF8    = "utf-8"

	PropertyAlert    = "alert"
	PropertyPriority = "priority"
)

// HighPriority reports whether the message was flagged as an alert.
func (m *Message) HighPriority() bool {
	return m.Properties[PropertyPriority] == "high"
}
