package index

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/geomesa/geomesa-core/geomesa"
)

// valueTerminator marks the end of a variable-width encoded value (String
// attributes only). Fixed-width attributes (bool/int32/int64/float/double/
// date/uuid) never write or look for this byte: LexEncode's fixed-width
// numeric and date encodings routinely embed 0x00 inside the value itself
// (e.g. int32(0) encodes to 0x80000000), so a terminator scan only works
// where the attribute's type guarantees the value can't contain one —
// which a caller determines from the schema, not by probing the row.
const valueTerminator = 0x00

// attrIndexNumber returns the attribute's position in the schema, the
// "attrIdx(2)" row component (spec §4.4).
func attrIndexNumber(ft *geomesa.FeatureType, name string) (uint16, error) {
	for i, a := range ft.Attributes {
		if a.Name == name {
			return uint16(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no attribute %q", geomesa.ErrSchemaConflict, ft.Name, name)
}

// attrElemType returns the value type actually stored per row for attr: its
// own type, or its ElementType when attr is a List (WriteAttr writes one row
// per element).
func attrElemType(attr geomesa.Attribute) geomesa.AttributeType {
	if attr.Type == geomesa.TList {
		return attr.ElementType
	}
	return attr.Type
}

// fixedValueWidth returns the encoded byte width of t when t's LexEncode
// output is always that many bytes, so a row's value boundary can be found
// by skipping a known width instead of scanning for a terminator.
func fixedValueWidth(t geomesa.AttributeType) (int, bool) {
	switch t {
	case geomesa.TBool:
		return 1, true
	case geomesa.TInt32, geomesa.TFloat:
		return 4, true
	case geomesa.TInt64, geomesa.TDouble, geomesa.TDate:
		return 8, true
	case geomesa.TUUID:
		return 16, true
	default:
		return 0, false
	}
}

// WriteAttr builds the rows a feature gets in the attribute-join index for
// one indexed attribute: "sharing? · attrIdx(2) · lexEncode(value) ·
// terminator? · dateMillisPrefix(12)? · id" — one row per value, so a
// list-typed attribute expands into one row per element (spec §4.4). The
// terminator only appears for a variable-width value type (String); a
// fixed-width type's value boundary is instead recovered from the schema,
// see fixedValueWidth. Unlike the Z2/Z3/XZ2/XZ3/Id indexes this is a join
// index (glossary: "stores only enough to answer the attribute predicate; a
// full row fetch by id completes the result") — its rows carry no value, and
// a strategy that selects it must join back to the Id index to materialise
// the rest of the feature.
func WriteAttr(ft *geomesa.FeatureType, f *geomesa.Feature, attrName string) ([]geomesa.Mutation, error) {
	attr, ok := ft.AttributeByName(attrName)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no attribute %q", geomesa.ErrSchemaConflict, ft.Name, attrName)
	}
	idx, err := attrIndexNumber(ft, attrName)
	if err != nil {
		return nil, err
	}
	raw, has := f.Value(ft, attrName)
	if !has || raw == nil {
		return nil, nil // no row for a null/absent attribute (see IsNull handling in filter)
	}

	var values []geomesa.Value
	if attr.Type == geomesa.TList {
		list, ok := raw.([]geomesa.Value)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is declared List but holds %T", geomesa.ErrSerde, ft.Name, attrName, raw)
		}
		values = list
	} else {
		values = []geomesa.Value{raw}
	}

	var datePrefix []byte
	if ft.DefaultDate != "" {
		rawDate, _ := f.Value(ft, ft.DefaultDate)
		if t, ok := rawDate.(time.Time); ok {
			datePrefix = dateMillisPrefix(t)
		}
	}

	elemType := attrElemType(attr)
	_, fixed := fixedValueWidth(elemType)

	out := make([]geomesa.Mutation, 0, len(values))
	for _, v := range values {
		encoded := geomesa.LexEncode(v)
		terminator := []byte(nil)
		if !fixed {
			terminator = []byte{valueTerminator}
		}
		row := concatBytes(
			sharingPrefix(ft),
			putUint16BE(idx),
			encoded,
			terminator,
			datePrefix,
			encodeID(f.ID),
		)
		out = append(out, geomesa.Mutation{Row: row, CF: CFIndex, Vis: f.Visibility.Expression})
	}
	return out, nil
}

// dateMillisPrefix is a fixed 12-byte component: 8 bytes of order-preserving
// epoch-millis (so a range query can also bound the join index by time)
// plus 4 reserved zero bytes, keeping the component a fixed width so the id
// suffix can always be found by trimming a known-length prefix.
func dateMillisPrefix(t time.Time) []byte {
	millis := geomesa.LexEncode(t)
	return concatBytes(millis, make([]byte, 4))
}

// RangeAttrEq returns the range for an equality predicate on an indexed
// attribute.
func RangeAttrEq(ft *geomesa.FeatureType, attrName string, v geomesa.Value) (geomesa.Range, error) {
	attr, ok := ft.AttributeByName(attrName)
	if !ok {
		return geomesa.Range{}, fmt.Errorf("%w: %s has no attribute %q", geomesa.ErrSchemaConflict, ft.Name, attrName)
	}
	idx, err := attrIndexNumber(ft, attrName)
	if err != nil {
		return geomesa.Range{}, err
	}
	encoded := geomesa.LexEncode(v)
	terminator := []byte(nil)
	if _, fixed := fixedValueWidth(attrElemType(attr)); !fixed {
		terminator = []byte{valueTerminator}
	}
	prefix := concatBytes(sharingPrefix(ft), putUint16BE(idx), encoded, terminator)
	return geomesa.PrefixRange(prefix), nil
}

// RangeAttrBetween returns the range for a between/range predicate
// (lo <= value <= hi) on an indexed attribute. Either bound may be nil,
// meaning "open on this side" (a plain Lt/Gt/Le/Ge comparison rather than
// a true Between); the caller retains the original comparison as a
// residual to enforce strict vs inclusive boundaries exactly.
func RangeAttrBetween(ft *geomesa.FeatureType, attrName string, lo, hi geomesa.Value) (geomesa.Range, error) {
	idx, err := attrIndexNumber(ft, attrName)
	if err != nil {
		return geomesa.Range{}, err
	}
	prefix := concatBytes(sharingPrefix(ft), putUint16BE(idx))

	start := prefix
	if lo != nil {
		start = concatBytes(prefix, geomesa.LexEncode(lo))
	}
	if hi == nil {
		return geomesa.Range{Start: start, End: nil}, nil
	}
	endRange := geomesa.PrefixRange(concatBytes(prefix, geomesa.LexEncode(hi)))
	return geomesa.Range{Start: start, End: endRange.End}, nil
}

// RangeAttrPrefix returns the range for a "LIKE 'foo%'" predicate (trailing
// wildcard only, see DESIGN.md Open Questions) on an indexed string
// attribute.
func RangeAttrPrefix(ft *geomesa.FeatureType, attrName string, literalPrefix string) (geomesa.Range, error) {
	idx, err := attrIndexNumber(ft, attrName)
	if err != nil {
		return geomesa.Range{}, err
	}
	prefix := concatBytes(sharingPrefix(ft), putUint16BE(idx), []byte(literalPrefix))
	return geomesa.PrefixRange(prefix), nil
}

// ExtractIDAttr recovers the id from an attribute-index row. It reads the
// "sharing? attrIdx(2)" header to resolve which attribute wrote the row,
// then uses that attribute's type to find the value's end: a fixed width
// skip for bool/numeric/date/uuid types, or a terminator scan for a
// variable-width (String) value. Resolving the width from the schema,
// rather than scanning the whole row for a sentinel byte, is what makes
// this safe for numeric and date attributes, whose LexEncode output
// legitimately embeds 0x00 bytes that a blind scan would mistake for the
// end of the value.
func ExtractIDAttr(ft *geomesa.FeatureType, row []byte) string {
	sharingLen := 0
	if ft.TableSharing {
		sharingLen = 1
	}
	idxStart := sharingLen
	valueStart := idxStart + 2
	if valueStart > len(row) {
		return ""
	}
	idx := binary.BigEndian.Uint16(row[idxStart:valueStart])
	if int(idx) >= len(ft.Attributes) {
		return ""
	}
	elemType := attrElemType(ft.Attributes[idx])

	var start int
	if width, fixed := fixedValueWidth(elemType); fixed {
		start = valueStart + width
	} else {
		end := -1
		for i := valueStart; i < len(row); i++ {
			if row[i] == valueTerminator {
				end = i
				break
			}
		}
		if end < 0 {
			return ""
		}
		start = end + 1
	}
	if ft.DefaultDate != "" {
		start += 12
	}
	return decodeIDSuffix(row, start)
}
