package geomesa

// Geometry is the minimal geometry surface this engine needs (spec §1
// Non-goals: "no geometry operations beyond bounding-box envelope, point
// coordinates, and geometry-collection decomposition"). It is intentionally
// not a full geometry library: no predicates, no relate matrix, no WKT/WKB
// parsing beyond what serde needs. See DESIGN.md for why this is the one
// deliberately stdlib-only component.
type Geometry interface {
	// Envelope returns the axis-aligned bounding box of the geometry.
	Envelope() Envelope
	geometryMarker()
}

// Point is a single coordinate.
type Point struct {
	X, Y float64
}

func (p Point) Envelope() Envelope { return Envelope{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y} }
func (Point) geometryMarker()      {}

// LineString is an ordered sequence of points.
type LineString struct {
	Points []Point
}

func (l LineString) Envelope() Envelope { return envelopeOfPoints(l.Points) }
func (LineString) geometryMarker()      {}

// Polygon is an exterior ring plus optional interior rings (holes); only the
// envelope of the combined rings is ever consulted by the index layer.
type Polygon struct {
	Exterior []Point
	Holes    [][]Point
}

func (p Polygon) Envelope() Envelope { return envelopeOfPoints(p.Exterior) }
func (Polygon) geometryMarker()      {}

// MultiPoint, MultiLineString, MultiPolygon are homogeneous collections.
type MultiPoint struct{ Points []Point }

func (m MultiPoint) Envelope() Envelope { return envelopeOfPoints(m.Points) }
func (MultiPoint) geometryMarker()      {}

type MultiLineString struct{ Lines []LineString }

func (m MultiLineString) Envelope() Envelope {
	var env Envelope
	first := true
	for _, l := range m.Lines {
		env = mergeEnvelope(env, l.Envelope(), first)
		first = false
	}
	return env
}
func (MultiLineString) geometryMarker() {}

type MultiPolygon struct{ Polygons []Polygon }

func (m MultiPolygon) Envelope() Envelope {
	var env Envelope
	first := true
	for _, p := range m.Polygons {
		env = mergeEnvelope(env, p.Envelope(), first)
		first = false
	}
	return env
}
func (MultiPolygon) geometryMarker() {}

// GeometryCollection is a heterogeneous collection, decomposed into its
// members by Decompose (spec §1: "geometry-collection decomposition").
type GeometryCollection struct {
	Members []Geometry
}

func (g GeometryCollection) Envelope() Envelope {
	var env Envelope
	first := true
	for _, m := range g.Members {
		env = mergeEnvelope(env, m.Envelope(), first)
		first = false
	}
	return env
}
func (GeometryCollection) geometryMarker() {}

// Decompose flattens nested GeometryCollections into their leaf geometries.
func Decompose(g Geometry) []Geometry {
	if gc, ok := g.(GeometryCollection); ok {
		var out []Geometry
		for _, m := range gc.Members {
			out = append(out, Decompose(m)...)
		}
		return out
	}
	return []Geometry{g}
}

// Envelope is an axis-aligned bounding box in (lon, lat) degrees.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// IsEmpty reports whether the envelope has no extent (the zero value).
func (e Envelope) IsEmpty() bool {
	return e.MinX == 0 && e.MinY == 0 && e.MaxX == 0 && e.MaxY == 0
}

// Intersects reports whether two envelopes overlap.
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && e.MaxX >= o.MinX && e.MinY <= o.MaxY && e.MaxY >= o.MinY
}

// Union returns the smallest envelope containing both e and o.
func (e Envelope) Union(o Envelope) Envelope {
	return Envelope{
		MinX: minF(e.MinX, o.MinX),
		MinY: minF(e.MinY, o.MinY),
		MaxX: maxF(e.MaxX, o.MaxX),
		MaxY: maxF(e.MaxY, o.MaxY),
	}
}

func envelopeOfPoints(pts []Point) Envelope {
	if len(pts) == 0 {
		return Envelope{}
	}
	env := Envelope{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		env.MinX = minF(env.MinX, p.X)
		env.MinY = minF(env.MinY, p.Y)
		env.MaxX = maxF(env.MaxX, p.X)
		env.MaxY = maxF(env.MaxY, p.Y)
	}
	return env
}

func mergeEnvelope(acc, next Envelope, first bool) Envelope {
	if first {
		return next
	}
	return acc.Union(next)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
