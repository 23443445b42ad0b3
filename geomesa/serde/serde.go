// Package serde implements the feature serializer contract spec §6 places
// behind the core as a consumed dependency: serialize(FeatureType, Feature)
// -> bytes, deserialize(FeatureType, bytes) -> Feature, and a projection
// variant that decodes only a requested attribute subset. Grounded on the
// teacher's datalog/storage/datom_decoder.go type-tag-byte-then-payload
// decode shape, generalised from a single attribute value to a whole
// feature record.
package serde

import (
	"encoding/binary"
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa"
)

const formatVersion = 1

// Serialize renders f as the self-describing byte payload stored under a
// full index's value (spec §4.4 "Full index... the entire serialised
// feature"). Unlike row keys, this payload is not required to be
// order-preserving — it is read back whole (or by skip-ahead projection),
// never compared byte-for-byte. Each attribute is a one-byte ValueType tag
// followed by its geomesa.LexEncode bytes (geometries use this package's
// geometry codec instead), length-prefixed; a nil attribute is an empty
// entry.
func Serialize(ft *geomesa.FeatureType, f *geomesa.Feature) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, formatVersion)
	buf = appendLenPrefixed(buf, []byte(f.ID))
	buf = appendVisibility(buf, f.Visibility)

	buf = append(buf, byte(len(ft.Attributes)>>8), byte(len(ft.Attributes)))
	for i, attr := range ft.Attributes {
		var v geomesa.Value
		if i < len(f.Values) {
			v = f.Values[i]
		}
		encoded, err := encodeAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("serde: encode %s.%s: %w", ft.Name, attr.Name, err)
		}
		buf = appendLenPrefixed(buf, encoded)
	}
	buf = appendUserData(buf, f.UserData)
	return buf, nil
}

// Deserialize inverts Serialize, decoding every attribute.
func Deserialize(ft *geomesa.FeatureType, data []byte) (*geomesa.Feature, error) {
	return deserialize(ft, data, nil)
}

// DeserializeProjection decodes only the named attributes, skipping past
// (but not decoding) the rest — the partial-decode half of spec §6's
// "lazy mode... used when the residual filter touches few attributes".
// Unrequested Values entries are left nil.
func DeserializeProjection(ft *geomesa.FeatureType, attrs []string, data []byte) (*geomesa.Feature, error) {
	want := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		want[a] = true
	}
	return deserialize(ft, data, want)
}

func deserialize(ft *geomesa.FeatureType, data []byte, want map[string]bool) (*geomesa.Feature, error) {
	r := &reader{buf: data}
	version, err := r.byte_()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported serde version %d", geomesa.ErrSerde, version)
	}
	id, err := r.lenPrefixed()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	vis, err := readVisibility(r)
	if err != nil {
		return nil, err
	}

	n, err := r.uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	values := make([]geomesa.Value, n)
	for i := 0; i < int(n); i++ {
		raw, err := r.lenPrefixed()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
		}
		if want != nil && (i >= len(ft.Attributes) || !want[ft.Attributes[i].Name]) {
			continue
		}
		v, err := decodeAttribute(raw)
		if err != nil {
			return nil, fmt.Errorf("serde: decode attribute %d: %w", i, err)
		}
		values[i] = v
	}
	userData, err := readUserData(r)
	if err != nil {
		return nil, err
	}

	return &geomesa.Feature{ID: string(id), Values: values, UserData: userData, Visibility: vis}, nil
}

// Codec adapts Deserialize to the scan.Decoder interface.
type Codec struct{}

func (Codec) Decode(ft *geomesa.FeatureType, row geomesa.Row) (*geomesa.Feature, error) {
	return Deserialize(ft, row.Value)
}

func encodeAttribute(v geomesa.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if g, ok := v.(geomesa.Geometry); ok {
		return append([]byte{byte(geomesa.VTGeometry)}, encodeGeometry(g)...), nil
	}
	vt := geomesa.TypeOf(v)
	return append([]byte{byte(vt)}, geomesa.LexEncode(v)...), nil
}

func decodeAttribute(raw []byte) (geomesa.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	vt := geomesa.ValueType(raw[0])
	payload := raw[1:]
	if vt == geomesa.VTGeometry {
		g, _, err := decodeGeometry(payload)
		return g, err
	}
	return geomesa.LexDecode(vt, payload)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte_() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) lenPrefixed() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of buffer")
	}
	out := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func appendLenPrefixed(buf []byte, v []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, v...)
}

func appendVisibility(buf []byte, vis geomesa.Visibility) []byte {
	buf = appendLenPrefixed(buf, []byte(vis.Expression))
	buf = append(buf, byte(len(vis.PerAttr)>>8), byte(len(vis.PerAttr)))
	for _, expr := range vis.PerAttr {
		buf = appendLenPrefixed(buf, []byte(expr))
	}
	return buf
}

func readVisibility(r *reader) (geomesa.Visibility, error) {
	expr, err := r.lenPrefixed()
	if err != nil {
		return geomesa.Visibility{}, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	n, err := r.uint16()
	if err != nil {
		return geomesa.Visibility{}, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	var perAttr []string
	if n > 0 {
		perAttr = make([]string, n)
	}
	for i := range perAttr {
		v, err := r.lenPrefixed()
		if err != nil {
			return geomesa.Visibility{}, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
		}
		perAttr[i] = string(v)
	}
	return geomesa.Visibility{Expression: string(expr), PerAttr: perAttr}, nil
}

func appendUserData(buf []byte, data map[string]string) []byte {
	buf = append(buf, byte(len(data)>>8), byte(len(data)))
	for k, v := range data {
		buf = appendLenPrefixed(buf, []byte(k))
		buf = appendLenPrefixed(buf, []byte(v))
	}
	return buf
}

func readUserData(r *reader) (map[string]string, error) {
	n, err := r.uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	if n == 0 {
		return nil, nil
	}
	out := make(map[string]string, n)
	for i := 0; i < int(n); i++ {
		k, err := r.lenPrefixed()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
		}
		v, err := r.lenPrefixed()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
		}
		out[string(k)] = string(v)
	}
	return out, nil
}
