package ir

// Version constants recorded alongside stored sessions.
const (
	// WireVersion is the message wire format version.
	WireVersion = "1"

	// EngineVersion is the tandem replica engine version.
	EngineVersion = "0.1.0"
)
