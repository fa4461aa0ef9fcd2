package event

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes events for transports that carry them as bytes.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(evt Event) ([]byte, error)
	Unmarshal(data []byte) (Event, error)
}

// JSONCodec encodes events as JSON.
type JSONCodec struct{}

// MsgpackCodec encodes events as MessagePack.
type MsgpackCodec struct{}

var (
	_ Codec = JSONCodec{}
	_ Codec = MsgpackCodec{}
)

// Name returns "json".
func (JSONCodec) Name() string { return "json" }

// ContentType returns the JSON media type.
func (JSONCodec) ContentType() string { return "application/json" }

// Marshal encodes evt as JSON.
func (JSONCodec) Marshal(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}

// Unmarshal decodes a JSON event.
func (JSONCodec) Unmarshal(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, fmt.Errorf("decode json event: %w", err)
	}
	return evt, nil
}

// Name returns "msgpack".
func (MsgpackCodec) Name() string { return "msgpack" }

// ContentType returns the MessagePack media type.
func (MsgpackCodec) ContentType() string { return "application/msgpack" }

// Marshal encodes evt as MessagePack.
func (MsgpackCodec) Marshal(evt Event) ([]byte, error) {
	return msgpack.Marshal(evt)
}

// Unmarshal decodes a MessagePack event.
func (MsgpackCodec) Unmarshal(data []byte) (Event, error) {
	var evt Event
	if err := msgpack.Unmarshal(data, &evt); err != nil {
		return Event{}, fmt.Errorf("decode msgpack event: %w", err)
	}
	return evt, nil
}

// CodecByName returns the codec for name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
