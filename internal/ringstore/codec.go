package ringstore

import "github.com/vmihailenco/msgpack/v5"

// Codec abstracts the serialization format used for ring metadata
// records, mirroring the teacher's store.Codec abstraction
// (internal/store/codec.go) so the format can be swapped without
// touching Store's logic.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// DefaultCodec is MessagePack.
var DefaultCodec Codec = msgpackCodec{}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(b []byte, v any) error { return msgpack.Unmarshal(b, v) }
