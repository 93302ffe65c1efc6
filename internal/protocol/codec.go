package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrEmpty     = errors.New("packet carries no message")
	ErrFieldType = errors.New("unexpected wire type")
	ErrBadString = errors.New("string field is not valid utf-8")
)

// Unknown is returned for a well-formed packet whose variant this server
// does not know. Callers treat it as a no-op.
type Unknown struct {
	Number Kind
}

func (u *Unknown) Kind() Kind                   { return u.Number }
func (u *Unknown) appendFields(b []byte) []byte { return b }
func (u *Unknown) setField(field) error         { return nil }

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func (f field) str() (string, error) {
	if f.typ != protowire.BytesType {
		return "", fmt.Errorf("field %d: %w", f.num, ErrFieldType)
	}
	if !utf8.Valid(f.bytes) {
		return "", fmt.Errorf("field %d: %w", f.num, ErrBadString)
	}
	return string(f.bytes), nil
}

func (f field) int32() (int32, error) {
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("field %d: %w", f.num, ErrFieldType)
	}
	return int32(f.varint), nil
}

func (f field) optInt32() (*int32, error) {
	v, err := f.int32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (f field) boolean() (bool, error) {
	if f.typ != protowire.VarintType {
		return false, fmt.Errorf("field %d: %w", f.num, ErrFieldType)
	}
	return f.varint != 0, nil
}

func (f field) optBool() (*bool, error) {
	v, err := f.boolean()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (f field) message() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("field %d: %w", f.num, ErrFieldType)
	}
	return f.bytes, nil
}

func eachField(data []byte, fn func(field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendOptInt32(b []byte, num protowire.Number, v *int32) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(*v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendOptBool(b []byte, num protowire.Number, v *bool) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(*v))
}

func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

// Marshal encodes msg as a packet whose single populated field is the
// message variant.
func Marshal(msg Message) []byte {
	return appendMessage(nil, protowire.Number(msg.Kind()), msg.appendFields(nil))
}

// Unmarshal decodes a packet. When several variants are present the last
// one wins. A packet with no variant yields ErrEmpty.
func Unmarshal(data []byte) (Message, error) {
	var (
		kind  Kind
		inner []byte
		found bool
	)
	err := eachField(data, func(f field) error {
		b, err := f.message()
		if err != nil {
			return err
		}
		kind, inner, found = Kind(f.num), b, true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode packet: %w", err)
	}
	if !found {
		return nil, ErrEmpty
	}

	msg := newMessage(kind)
	if msg == nil {
		return &Unknown{Number: kind}, nil
	}
	if err := eachField(inner, msg.setField); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return msg, nil
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

var kindNames = map[Kind]string{
	KindLogin:       "login",
	KindCreate:      "create",
	KindConnected:   "connected",
	KindError:       "error",
	KindClose:       "close",
	KindMove:        "move",
	KindMoveClient:  "move_client",
	KindTeleport:    "teleport",
	KindFire:        "fire",
	KindFireStop:    "fire_stop",
	KindReload:      "reload",
	KindDraw:        "draw",
	KindWeaponData:  "weapon_data",
	KindAmmo:        "ammo",
	KindHealth:      "health",
	KindPlay:        "play",
	KindParseMap:    "parse_map",
	KindOnline:      "online",
	KindOffline:     "offline",
	KindChat:        "chat",
	KindSay:         "say",
	KindBuffer:      "buffer",
	KindWho:         "who",
	KindPing:        "ping",
	KindPong:        "pong",
	KindServerStats: "server_stats",
	KindServerNote:  "server_note",
	KindCycle:       "cycle",
	KindUseItem:     "use_item",
	KindCreated:     "created",
	KindConnect:     "connect",
	KindJump:        "jump",
}
