package protocol

import "encoding/json"

// Serializer defines the contract for serializing and deserializing command payloads.
// This allows a host transport to choose its preferred format (JSON, Protobuf, etc.)
// while interacting with the economy engine.
type Serializer interface {
	// Marshal serializes a Go struct (e.g. SellCommand) into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a Go struct.
	// v must be a pointer to the target struct.
	Unmarshal(data []byte, v any) error
}

// DefaultJSONSerializer is the Serializer used when none is configured.
type DefaultJSONSerializer struct{}

func (s *DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (s *DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
