package geomesa

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Value is any attribute value the engine understands. Concrete types are
// bool, int32, int64, float32, float64, string, time.Time (Date), [16]byte
// (UUID), []Value (List), map[string]Value (Map), Point, LineString,
// Polygon, Multi* and GeometryCollection (see geometry.go).
type Value interface{}

// ValueType tags the wire encoding of a Value; see LexEncode/LexDecode.
type ValueType byte

const (
	VTBool ValueType = iota
	VTInt32
	VTInt64
	VTFloat
	VTDouble
	VTString
	VTDate
	VTUUID
	VTGeometry
)

// TypeOf returns the wire ValueType for v.
func TypeOf(v Value) ValueType {
	switch v.(type) {
	case bool:
		return VTBool
	case int32:
		return VTInt32
	case int64:
		return VTInt64
	case float32:
		return VTFloat
	case float64:
		return VTDouble
	case string:
		return VTString
	case time.Time:
		return VTDate
	case [16]byte:
		return VTUUID
	case Geometry:
		return VTGeometry
	default:
		panic(fmt.Sprintf("geomesa: unsupported value type %T", v))
	}
}

// LexEncode is the TypeEncoder of spec §4.4: a total, order-preserving byte
// encoding such that lexicographic byte order matches the natural order of
// the underlying value. This is the one place the teacher's equivalent
// (datalog/value_encoding.go's raw big-endian/Float64bits encoding) is
// deliberately NOT copied as-is: that encoding breaks order for negative
// numbers, and order-preservation is a hard invariant here, not an
// optimisation — see DESIGN.md.
func LexEncode(v Value) []byte {
	switch val := v.(type) {
	case bool:
		if val {
			return []byte{1}
		}
		return []byte{0}
	case int32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(val)^0x80000000)
		return buf
	case int64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(val)^0x8000000000000000)
		return buf
	case float32:
		bits := math.Float32bits(val)
		if bits&0x80000000 != 0 {
			bits = ^bits
		} else {
			bits |= 0x80000000
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, bits)
		return buf
	case float64:
		bits := math.Float64bits(val)
		if bits&0x8000000000000000 != 0 {
			bits = ^bits
		} else {
			bits |= 0x8000000000000000
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf
	case string:
		return []byte(val)
	case time.Time:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(val.UnixMilli())^0x8000000000000000)
		return buf
	case [16]byte:
		out := make([]byte, 16)
		copy(out, val[:])
		return out
	default:
		panic(fmt.Sprintf("geomesa: cannot lex-encode value type %T", v))
	}
}

// LexDecode inverts LexEncode for the given wire type.
func LexDecode(vt ValueType, data []byte) (Value, error) {
	switch vt {
	case VTBool:
		if len(data) != 1 {
			return nil, fmt.Errorf("%w: bool value must be 1 byte, got %d", ErrSerde, len(data))
		}
		return data[0] != 0, nil
	case VTInt32:
		if len(data) != 4 {
			return nil, fmt.Errorf("%w: int32 value must be 4 bytes, got %d", ErrSerde, len(data))
		}
		return int32(binary.BigEndian.Uint32(data) ^ 0x80000000), nil
	case VTInt64:
		if len(data) != 8 {
			return nil, fmt.Errorf("%w: int64 value must be 8 bytes, got %d", ErrSerde, len(data))
		}
		return int64(binary.BigEndian.Uint64(data) ^ 0x8000000000000000), nil
	case VTFloat:
		if len(data) != 4 {
			return nil, fmt.Errorf("%w: float value must be 4 bytes, got %d", ErrSerde, len(data))
		}
		bits := binary.BigEndian.Uint32(data)
		if bits&0x80000000 != 0 {
			bits &^= 0x80000000
		} else {
			bits = ^bits
		}
		return math.Float32frombits(bits), nil
	case VTDouble:
		if len(data) != 8 {
			return nil, fmt.Errorf("%w: double value must be 8 bytes, got %d", ErrSerde, len(data))
		}
		bits := binary.BigEndian.Uint64(data)
		if bits&0x8000000000000000 != 0 {
			bits &^= 0x8000000000000000
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), nil
	case VTString:
		return string(data), nil
	case VTDate:
		if len(data) != 8 {
			return nil, fmt.Errorf("%w: date value must be 8 bytes, got %d", ErrSerde, len(data))
		}
		millis := int64(binary.BigEndian.Uint64(data) ^ 0x8000000000000000)
		return time.UnixMilli(millis).UTC(), nil
	case VTUUID:
		if len(data) != 16 {
			return nil, fmt.Errorf("%w: uuid value must be 16 bytes, got %d", ErrSerde, len(data))
		}
		var out [16]byte
		copy(out[:], data)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown value type %v", ErrSerde, vt)
	}
}

// CompareValues orders two values of the same underlying type; used by
// attribute range/between predicates and by tests that check LexEncode order
// matches natural order.
func CompareValues(a, b Value) int {
	switch av := a.(type) {
	case int32:
		bv := b.(int32)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float32:
		bv := b.(float32)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		default:
			return 0
		}
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av && bv {
			return -1
		}
		return 1
	default:
		panic(fmt.Sprintf("geomesa: cannot compare value type %T", a))
	}
}
