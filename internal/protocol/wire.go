package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// encoder appends protobuf fields with proto3 presence rules: zero scalars
// and empty strings are not written.
type encoder struct {
	buf []byte
}

func (e *encoder) putUvarint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *encoder) putInt32(num protowire.Number, v int32) {
	e.putUvarint(num, uint64(int64(v)))
}

func (e *encoder) putInt64(num protowire.Number, v int64) {
	e.putUvarint(num, uint64(v))
}

func (e *encoder) putDouble(num protowire.Number, v float64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
}

func (e *encoder) putString(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

func (e *encoder) putBytes(num protowire.Number, b []byte) {
	if len(b) == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// message writes an embedded message even when it is empty, so repeated
// elements keep their count.
func (e *encoder) putMessage(num protowire.Number, b []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

func (e *encoder) putPackedInt32(num protowire.Number, vs []int32) {
	if len(vs) == 0 {
		return
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, packed)
}

// visitFunc reads the value of one field starting at b and returns how many
// bytes it consumed. Returning skip leaves the value to be skipped.
type visitFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

const skip = -1

func decodeFields(b []byte, visit visitFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := visit(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == skip {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func expectType(got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("wire type %d, want %d", got, want)
	}
	return nil
}

func readVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if err := expectType(typ, protowire.VarintType); err != nil {
		return 0, 0, err
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func readDouble(typ protowire.Type, b []byte) (float64, int, error) {
	if err := expectType(typ, protowire.Fixed64Type); err != nil {
		return 0, 0, err
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return math.Float64frombits(v), n, nil
}

func readBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if err := expectType(typ, protowire.BytesType); err != nil {
		return nil, 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func readString(typ protowire.Type, b []byte) (string, int, error) {
	v, n, err := readBytes(typ, b)
	return string(v), n, err
}

// readInt32s accepts both packed and unpacked encodings of a repeated int32.
func readInt32s(dst []int32, typ protowire.Type, b []byte) ([]int32, int, error) {
	if typ == protowire.VarintType {
		v, n, err := readVarint(typ, b)
		if err != nil {
			return dst, 0, err
		}
		return append(dst, int32(v)), n, nil
	}

	packed, n, err := readBytes(typ, b)
	if err != nil {
		return dst, 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return dst, 0, protowire.ParseError(m)
		}
		dst = append(dst, int32(v))
		packed = packed[m:]
	}
	return dst, n, nil
}
