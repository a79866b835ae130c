package envelope

// DefaultMessage accompanies every success envelope.
const DefaultMessage = "ok"

// Envelope is the response body of every request on every transport.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message"`
}

// None is the data type of failure envelopes, which never carry data.
type None struct{}

// Success wraps data with the default informational message.
func Success[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: &data, Message: DefaultMessage}
}

// Failure builds an envelope with no data. kind only decides the status the
// caller pairs it with; see FromError.
func Failure(message string, kind Kind) (Envelope[None], Status) {
	return Envelope[None]{Success: false, Message: message}, StatusOf(kind)
}

// FromError classifies err and builds the matching failure envelope.
func FromError(err error) (Envelope[None], Status) {
	return Failure(PublicMessage(err), KindOf(err))
}
