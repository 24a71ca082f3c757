package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec replaces grpc-go's default "proto" codec with a JSON encoder so
// PushRequest/PushResponse and the DData read messages can be plain Go
// structs instead of protoc-generated types. Registering under the name
// "proto" overrides the codec grpc-go selects when a call specifies no
// content-subtype, which is the default for every call in this package.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "proto"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
