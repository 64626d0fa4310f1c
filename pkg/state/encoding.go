package state

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/sambigeara/lwwdict/pkg/crdt"
)

// Snapshot is the state exchanged between replicas and written to disk.
type Snapshot = crdt.Snapshot[string, string]

// Wire layout, protobuf compatible:
//
//	message Snapshot { repeated Entry adds = 1; repeated Entry removes = 2; }
//	message Entry    { string key = 1; string value = 2; sint64 timestamp = 3; }
const (
	fieldAdds    protowire.Number = 1
	fieldRemoves protowire.Number = 2

	fieldKey       protowire.Number = 1
	fieldValue     protowire.Number = 2
	fieldTimestamp protowire.Number = 3
)

var ErrCorrupt = errors.New("corrupt snapshot")

func Marshal(s Snapshot) []byte {
	var b []byte
	for _, e := range s.Adds {
		b = appendEntry(b, fieldAdds, e)
	}
	for _, e := range s.Removes {
		b = appendEntry(b, fieldRemoves, e)
	}
	return b
}

func appendEntry(b []byte, num protowire.Number, e crdt.Entry[string, string]) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, fieldKey, protowire.BytesType)
	msg = protowire.AppendString(msg, e.Key)
	msg = protowire.AppendTag(msg, fieldValue, protowire.BytesType)
	msg = protowire.AppendString(msg, e.Value)
	msg = protowire.AppendTag(msg, fieldTimestamp, protowire.VarintType)
	msg = protowire.AppendVarint(msg, protowire.EncodeZigZag(int64(e.Timestamp)))

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func Unmarshal(b []byte) (Snapshot, error) {
	var s Snapshot
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Snapshot{}, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		if (num != fieldAdds && num != fieldRemoves) || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Snapshot{}, corrupt(protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return Snapshot{}, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		e, err := unmarshalEntry(msg)
		if err != nil {
			return Snapshot{}, err
		}
		if num == fieldAdds {
			s.Adds = append(s.Adds, e)
		} else {
			s.Removes = append(s.Removes, e)
		}
	}
	return s, nil
}

func unmarshalEntry(b []byte) (crdt.Entry[string, string], error) {
	var e crdt.Entry[string, string]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKey && typ == protowire.BytesType:
			e.Key, n = protowire.ConsumeString(b)
		case num == fieldValue && typ == protowire.BytesType:
			e.Value, n = protowire.ConsumeString(b)
		case num == fieldTimestamp && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			e.Timestamp = crdt.Timestamp(protowire.DecodeZigZag(v))
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return e, corrupt(protowire.ParseError(n))
		}
		b = b[n:]
	}
	return e, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %w", ErrCorrupt, err)
}
