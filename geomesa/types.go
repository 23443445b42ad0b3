package geomesa

import (
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa/period"
)

// AttributeType is the logical type of a feature attribute (spec §3).
type AttributeType uint8

const (
	TBool AttributeType = iota
	TInt32
	TInt64
	TFloat
	TDouble
	TString
	TDate // UTC millis
	TUUID
	TList
	TMap
	TPoint
	TLineString
	TPolygon
	TMultiPoint
	TMultiLineString
	TMultiPolygon
	TGeometry
	TGeometryCollection
)

func (t AttributeType) String() string {
	switch t {
	case TBool:
		return "Bool"
	case TInt32:
		return "Int32"
	case TInt64:
		return "Int64"
	case TFloat:
		return "Float"
	case TDouble:
		return "Double"
	case TString:
		return "String"
	case TDate:
		return "Date"
	case TUUID:
		return "UUID"
	case TList:
		return "List"
	case TMap:
		return "Map"
	case TPoint:
		return "Point"
	case TLineString:
		return "LineString"
	case TPolygon:
		return "Polygon"
	case TMultiPoint:
		return "MultiPoint"
	case TMultiLineString:
		return "MultiLineString"
	case TMultiPolygon:
		return "MultiPolygon"
	case TGeometry:
		return "Geometry"
	case TGeometryCollection:
		return "GeometryCollection"
	default:
		return "Unknown"
	}
}

// IsGeometry reports whether the type is any geometry flavour.
func (t AttributeType) IsGeometry() bool {
	switch t {
	case TPoint, TLineString, TPolygon, TMultiPoint, TMultiLineString, TMultiPolygon, TGeometry, TGeometryCollection:
		return true
	default:
		return false
	}
}

// IndexLevel controls how an attribute is indexed.
type IndexLevel uint8

const (
	IndexNone IndexLevel = iota
	IndexJoin
	IndexFull
)

// Cardinality is a selectivity hint attached to an attribute.
type Cardinality uint8

const (
	CardinalityNormal Cardinality = iota
	CardinalityLow
	CardinalityHigh
)

// ZInterval is the period-binning interval used by Z3/XZ3 (C3), aliased to
// period.Interval so a FeatureType's ZInterval can be passed directly to
// period.Bin/period.BinsBetween without a conversion at every call site.
type ZInterval = period.Interval

const (
	IntervalDay   = period.Day
	IntervalWeek  = period.Week
	IntervalMonth = period.Month
	IntervalYear  = period.Year
)

// VisibilityMode controls whether a feature or each attribute carries its own
// visibility expression.
type VisibilityMode uint8

const (
	VisibilityFeature VisibilityMode = iota
	VisibilityAttribute
)

// Attribute describes one column of a FeatureType.
type Attribute struct {
	Name        string
	Type        AttributeType
	ElementType AttributeType // for List<T>; ignored otherwise
	Indexed     IndexLevel
	Cardinality Cardinality
}

// FeatureType is the immutable schema of a named feature population (spec §3).
// Construct with NewFeatureType, which validates the invariants.
type FeatureType struct {
	Name string

	Attributes []Attribute

	DefaultGeometry string // attribute name
	DefaultDate     string // attribute name, "" if none

	EnabledIndexes map[IndexKind]bool

	TableSharing bool
	SharingByte  byte

	ZInterval      ZInterval
	VisibilityMode VisibilityMode

	// Shards is the number of shard byte values used to spread rows
	// across tablets; 1 means no shard byte is written (spec §4.4).
	Shards int
}

// IndexKind names one of the enumerated index implementations.
type IndexKind uint8

const (
	IndexZ2 IndexKind = iota
	IndexZ3
	IndexXZ2
	IndexXZ3
	IndexID
	IndexAttribute
)

func (k IndexKind) String() string {
	switch k {
	case IndexZ2:
		return "z2"
	case IndexZ3:
		return "z3"
	case IndexXZ2:
		return "xz2"
	case IndexXZ3:
		return "xz3"
	case IndexID:
		return "id"
	case IndexAttribute:
		return "attr"
	default:
		return "unknown"
	}
}

// IndexTableName returns the physical table one feature type's index kind
// writes to and is read from. Each index kind gets its own table (spec §6
// "createSchema creates per-type tables"; real GeoMesa likewise keeps Z2,
// Z3, attribute and record data in physically distinct tables per feature
// type) so a scan bounded to one index's row-key layout and column family
// can never observe rows a different index wrote, even when two indexes'
// row-byte layouts happen to overlap.
func IndexTableName(typeName string, kind IndexKind) string {
	return typeName + "_" + kind.String()
}

// AttributeByName looks up an attribute by name.
func (ft *FeatureType) AttributeByName(name string) (Attribute, bool) {
	for _, a := range ft.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// DefaultGeometryAttribute returns the default geometry attribute.
func (ft *FeatureType) DefaultGeometryAttribute() (Attribute, bool) {
	return ft.AttributeByName(ft.DefaultGeometry)
}

// Validate checks the FeatureType invariants from spec §3.
func (ft *FeatureType) Validate() error {
	if ft.Name == "" {
		return fmt.Errorf("%w: feature type has no name", ErrSchemaConflict)
	}

	geomAttr, hasGeom := ft.AttributeByName(ft.DefaultGeometry)
	if !hasGeom || !geomAttr.Type.IsGeometry() {
		return fmt.Errorf("%w: %s has no valid default geometry attribute", ErrSchemaConflict, ft.Name)
	}

	// (a) If Z3/XZ3 enabled, default date is defined.
	if (ft.EnabledIndexes[IndexZ3] || ft.EnabledIndexes[IndexXZ3]) && ft.DefaultDate == "" {
		return fmt.Errorf("%w: %s enables Z3/XZ3 but has no default date attribute", ErrSchemaConflict, ft.Name)
	}
	if ft.DefaultDate != "" {
		if attr, ok := ft.AttributeByName(ft.DefaultDate); !ok || attr.Type != TDate {
			return fmt.Errorf("%w: %s default date %q is not a Date attribute", ErrSchemaConflict, ft.Name, ft.DefaultDate)
		}
	}

	// (d) Per-attribute visibility requires all indexed attributes be full.
	if ft.VisibilityMode == VisibilityAttribute {
		for _, a := range ft.Attributes {
			if a.Indexed == IndexJoin {
				return fmt.Errorf("%w: %s uses per-attribute visibility but %s is join-indexed", ErrSchemaConflict, ft.Name, a.Name)
			}
		}
	}

	if ft.Shards < 1 {
		return fmt.Errorf("%w: %s has invalid shard count %d", ErrSchemaConflict, ft.Name, ft.Shards)
	}

	names := make(map[string]bool, len(ft.Attributes))
	for _, a := range ft.Attributes {
		if names[a.Name] {
			return fmt.Errorf("%w: %s has duplicate attribute %q", ErrSchemaConflict, ft.Name, a.Name)
		}
		names[a.Name] = true
	}

	return nil
}

// NewFeatureType constructs and validates a FeatureType.
func NewFeatureType(name string, attrs []Attribute, defaultGeometry, defaultDate string) (*FeatureType, error) {
	ft := &FeatureType{
		Name:            name,
		Attributes:      attrs,
		DefaultGeometry: defaultGeometry,
		DefaultDate:     defaultDate,
		EnabledIndexes:  map[IndexKind]bool{IndexZ2: true, IndexID: true},
		ZInterval:       IntervalWeek,
		Shards:          1,
	}
	if defaultDate != "" {
		ft.EnabledIndexes[IndexZ3] = true
		delete(ft.EnabledIndexes, IndexZ2)
	}
	if err := ft.Validate(); err != nil {
		return nil, err
	}
	return ft, nil
}

// Feature is a single record: an id, attribute values aligned positionally
// with its FeatureType, user data, and a visibility expression or vector.
type Feature struct {
	ID         string
	Values     []Value
	UserData   map[string]string
	Visibility Visibility
}

// Visibility is an opaque expression (feature-level) or one expression per
// attribute (attribute-level), per spec §3. The engine never interprets it;
// that's left to the backend's cell-level security.
type Visibility struct {
	Expression string
	PerAttr    []string // parallel to FeatureType.Attributes, when attribute-level
}

// Value returns the value of the named attribute, or nil if absent.
func (f *Feature) Value(ft *FeatureType, name string) (Value, bool) {
	for i, a := range ft.Attributes {
		if a.Name == name && i < len(f.Values) {
			return f.Values[i], true
		}
	}
	return nil, false
}
