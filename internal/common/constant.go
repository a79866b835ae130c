package common

// ServiceName labels logs and metrics.
const ServiceName = "usersvc"

// EnvelopeStatusHeader carries the envelope's status class on transports
// whose own status cannot express it (gRPC metadata).
const EnvelopeStatusHeader = "x-envelope-status"
