package transport

import "encoding/json"

// LoggingTransport implements the Transport interface by logging each
// envelope at debug level.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	log.Debugf("using logging transport")
	return &LoggingTransport{}
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		log.Debugf("event (%T): %+v", data, data)
		return nil
	}
	log.Debugf("event %s", b)
	return nil
}

func (lt *LoggingTransport) Close() error { return nil }

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
