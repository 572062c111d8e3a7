package api

import (
	"github.com/bytedance/sonic"
	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content subtype the service speaks
// (content-type application/grpc+json).
const codecName = "json"

// jsonCodec carries plain Go structs over gRPC instead of protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return sonic.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return sonic.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
