// Package serialize converts Go values to and from wire bytes; its Default
// serializer backs rpcfacade's gRPC codec (the cache core itself stores the
// []byte values it is given unchanged). It follows the dispatch pattern of
// the teacher's ping.pingCodec: a default codec for plain Go values, with a
// protobuf fast path for values that implement proto.Message.
package serialize

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Serializer converts a value to and from wire bytes.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Default is the package-level Serializer used by rpcfacade's gRPC codec:
// protobuf messages are marshaled with proto.Marshal, everything else falls
// back to JSON.
var Default Serializer = dispatchSerializer{}

type dispatchSerializer struct{}

func (dispatchSerializer) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return json.Marshal(v)
}

func (dispatchSerializer) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("serialize: unmarshal: %w", err)
	}
	return nil
}

// JSON is a Serializer that always uses encoding/json, regardless of whether
// v implements proto.Message. Useful when callers want predictable wire
// bytes for debugging.
var JSON Serializer = jsonSerializer{}

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
