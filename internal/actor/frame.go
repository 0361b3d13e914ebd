package actor

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// frameKind tags the payload of a wire Frame.
type frameKind byte

const (
	frameKindUser   frameKind = 0x01
	frameKindSystem frameKind = 0x02
	frameKindPing   frameKind = 0x03
	frameKindPong   frameKind = 0x04
)

// Frame is the normative wire format exchanged between two Hubs: a 1-byte
// kind, a 4-byte big-endian length prefix covering everything that follows,
// a NUL-terminated sender NodeID, a NUL-terminated recipient path, and
// finally the opaque payload bytes. Ping/Pong frames carry no payload and an
// empty recipient path.
type Frame struct {
	Kind      frameKind
	Sender    NodeID
	Recipient Path
	Payload   []byte
}

// encodeFrame renders f into its wire representation.
func encodeFrame(f Frame) []byte {
	var body bytes.Buffer
	body.WriteString(string(f.Sender))
	body.WriteByte(0)
	body.WriteString(f.Recipient.Local().String())
	body.WriteByte(0)
	body.Write(f.Payload)

	out := make([]byte, 1+4+body.Len())
	out[0] = byte(f.Kind)
	binary.BigEndian.PutUint32(out[1:5], uint32(body.Len()))
	copy(out[5:], body.Bytes())

	return out
}

// decodeFrame parses raw (exactly one frame's worth of bytes, as delivered
// by a Conn.Recv) back into a Frame.
func decodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 5 {
		return Frame{}, fmt.Errorf("frame too short: %d bytes", len(raw))
	}

	kind := frameKind(raw[0])
	length := binary.BigEndian.Uint32(raw[1:5])
	body := raw[5:]

	if uint32(len(body)) != length {
		return Frame{}, fmt.Errorf(
			"frame length mismatch: header says %d, got %d", length, len(body),
		)
	}

	if kind == frameKindPing || kind == frameKindPong {
		// Ping/Pong still carry a NUL-terminated sender for symmetry
		// but no recipient/payload.
		nul := bytes.IndexByte(body, 0)
		if nul < 0 {
			return Frame{}, fmt.Errorf("ping/pong frame missing sender terminator")
		}
		return Frame{Kind: kind, Sender: NodeID(body[:nul])}, nil
	}

	firstNul := bytes.IndexByte(body, 0)
	if firstNul < 0 {
		return Frame{}, fmt.Errorf("frame missing sender terminator")
	}
	sender := NodeID(body[:firstNul])

	rest := body[firstNul+1:]
	secondNul := bytes.IndexByte(rest, 0)
	if secondNul < 0 {
		return Frame{}, fmt.Errorf("frame missing recipient terminator")
	}
	recipientRaw := string(rest[:secondNul])
	payload := rest[secondNul+1:]

	recipient, err := ParsePath(recipientRaw)
	if err != nil {
		// The recipient path travels node-relative over the wire
		// (the sender already knows which node it's talking to), so
		// reattach the sending peer's identity isn't meaningful here
		// — a bare local-path parse failure is always a protocol
		// error from a misbehaving peer.
		return Frame{}, fmt.Errorf("bad recipient path %q: %w", recipientRaw, err)
	}

	return Frame{
		Kind:      kind,
		Sender:    sender,
		Recipient: recipient,
		Payload:   payload,
	}, nil
}

// payloadCodec serializes/deserializes the arbitrary `any` user message
// payloads carried opaquely inside a Frame's Payload bytes. gob is used
// rather than a schema'd format (e.g. protobuf) because the kernel's
// message type is an open `any`, not a fixed set of generated types;
// applications sending a message across the wire for the first time must
// register its concrete type with gob.Register, exactly as with any other
// gob-encoded interface value.
func encodePayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePayload(raw []byte) (any, error) {
	var v any
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}
