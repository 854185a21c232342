package messages

import (
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/messages/fb"
	"github.com/cbodonnell/evervoid/pkg/value"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	if encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}
	if decoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MessageBufferSize)); err != nil {
		panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
	}
}

// SerializeFrame encodes a message as a zstd-compressed flatbuffers frame.
// sequence is a per-connection counter the receiver can use to detect
// reordering.
func SerializeFrame(m *Message, sequence uint32) ([]byte, error) {
	b, err := SerializeFrameFlatbuffer(m, sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}
	return encoder.EncodeAll(b, make([]byte, 0, len(b))), nil
}

// DeserializeFrame decodes a frame produced by SerializeFrame.
func DeserializeFrame(data []byte) (*Message, uint32, error) {
	b, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decompress frame: %w", err)
	}
	m, seq, err := DeserializeFrameFlatbuffer(b)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to deserialize frame: %w", err)
	}
	return m, seq, nil
}

func SerializeFrameFlatbuffer(m *Message, sequence uint32) ([]byte, error) {
	if m.Type == "" {
		return nil, &ProtocolError{Reason: "message has no type"}
	}
	payload := m.Payload
	if payload == nil {
		payload = value.NewObject()
	}

	builder := flatbuffers.NewBuilder(0)
	payloadOffset := builder.CreateByteVector([]byte(value.Serialize(payload)))
	typeOffset := builder.CreateString(m.Type)

	fb.FrameStart(builder)
	fb.FrameAddType(builder, typeOffset)
	fb.FrameAddSequence(builder, sequence)
	fb.FrameAddPayload(builder, payloadOffset)
	builder.Finish(fb.FrameEnd(builder))

	return builder.FinishedBytes(), nil
}

func DeserializeFrameFlatbuffer(b []byte) (m *Message, sequence uint32, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, 0, &ProtocolError{Reason: "frame too short"}
	}
	// accessors panic on out of range offsets in a corrupt buffer
	defer func() {
		if r := recover(); r != nil {
			m, sequence, err = nil, 0, &ProtocolError{Reason: fmt.Sprintf("corrupt frame: %v", r)}
		}
	}()

	frame := fb.GetRootAsFrame(b, 0)
	msgType := string(frame.Type())
	if msgType == "" {
		return nil, 0, &ProtocolError{Reason: "frame has no type"}
	}
	payload, err := value.Parse(string(frame.PayloadBytes()))
	if err != nil {
		return nil, 0, &ProtocolError{Type: msgType, Reason: "invalid payload", Err: err}
	}
	if payload.Kind() != value.KindObject {
		return nil, 0, &ProtocolError{Type: msgType, Reason: fmt.Sprintf("payload is %s, not object", payload.Kind())}
	}
	return &Message{Type: msgType, Payload: payload}, frame.Sequence(), nil
}
