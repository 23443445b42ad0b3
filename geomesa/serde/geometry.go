package serde

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/geomesa/geomesa-core/geomesa"
)

// Geometry wire tags for the feature payload (spec §1: "no WKT/WKB parsing
// beyond what serde needs" — this is that minimal self-describing codec,
// not a general WKB implementation).
const (
	geomPoint byte = iota
	geomLineString
	geomPolygon
	geomMultiPoint
	geomMultiLineString
	geomMultiPolygon
	geomCollection
)

func encodeGeometry(g geomesa.Geometry) []byte {
	switch v := g.(type) {
	case geomesa.Point:
		return append([]byte{geomPoint}, encodePoint(v)...)
	case geomesa.LineString:
		return append([]byte{geomLineString}, encodePoints(v.Points)...)
	case geomesa.Polygon:
		buf := []byte{geomPolygon}
		buf = append(buf, encodePoints(v.Exterior)...)
		buf = appendUint32(buf, uint32(len(v.Holes)))
		for _, h := range v.Holes {
			buf = append(buf, encodePoints(h)...)
		}
		return buf
	case geomesa.MultiPoint:
		return append([]byte{geomMultiPoint}, encodePoints(v.Points)...)
	case geomesa.MultiLineString:
		buf := appendUint32([]byte{geomMultiLineString}, uint32(len(v.Lines)))
		for _, l := range v.Lines {
			buf = append(buf, encodePoints(l.Points)...)
		}
		return buf
	case geomesa.MultiPolygon:
		buf := appendUint32([]byte{geomMultiPolygon}, uint32(len(v.Polygons)))
		for _, p := range v.Polygons {
			buf = append(buf, encodePoints(p.Exterior)...)
			buf = appendUint32(buf, uint32(len(p.Holes)))
			for _, h := range p.Holes {
				buf = append(buf, encodePoints(h)...)
			}
		}
		return buf
	case geomesa.GeometryCollection:
		buf := appendUint32([]byte{geomCollection}, uint32(len(v.Members)))
		for _, m := range v.Members {
			member := encodeGeometry(m)
			buf = appendUint32(buf, uint32(len(member)))
			buf = append(buf, member...)
		}
		return buf
	default:
		return nil
	}
}

func decodeGeometry(data []byte) (geomesa.Geometry, int, error) {
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("%w: empty geometry payload", geomesa.ErrSerde)
	}
	tag := data[0]
	rest := data[1:]
	switch tag {
	case geomPoint:
		p, n, err := decodePoint(rest)
		return p, n + 1, err
	case geomLineString:
		pts, n, err := decodePoints(rest)
		return geomesa.LineString{Points: pts}, n + 1, err
	case geomPolygon:
		ext, n, err := decodePoints(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[n:]
		numHoles, hn, err := readUint32(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[hn:]
		total := 1 + n + hn
		holes := make([][]geomesa.Point, numHoles)
		for i := 0; i < int(numHoles); i++ {
			h, hlen, err := decodePoints(rest)
			if err != nil {
				return nil, 0, err
			}
			holes[i] = h
			rest = rest[hlen:]
			total += hlen
		}
		return geomesa.Polygon{Exterior: ext, Holes: holes}, total, nil
	case geomMultiPoint:
		pts, n, err := decodePoints(rest)
		return geomesa.MultiPoint{Points: pts}, n + 1, err
	case geomMultiLineString:
		count, cn, err := readUint32(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[cn:]
		total := 1 + cn
		lines := make([]geomesa.LineString, count)
		for i := 0; i < int(count); i++ {
			pts, n, err := decodePoints(rest)
			if err != nil {
				return nil, 0, err
			}
			lines[i] = geomesa.LineString{Points: pts}
			rest = rest[n:]
			total += n
		}
		return geomesa.MultiLineString{Lines: lines}, total, nil
	case geomMultiPolygon:
		count, cn, err := readUint32(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[cn:]
		total := 1 + cn
		polys := make([]geomesa.Polygon, count)
		for i := 0; i < int(count); i++ {
			ext, n, err := decodePoints(rest)
			if err != nil {
				return nil, 0, err
			}
			rest = rest[n:]
			total += n
			numHoles, hn, err := readUint32(rest)
			if err != nil {
				return nil, 0, err
			}
			rest = rest[hn:]
			total += hn
			holes := make([][]geomesa.Point, numHoles)
			for j := 0; j < int(numHoles); j++ {
				h, hlen, err := decodePoints(rest)
				if err != nil {
					return nil, 0, err
				}
				holes[j] = h
				rest = rest[hlen:]
				total += hlen
			}
			polys[i] = geomesa.Polygon{Exterior: ext, Holes: holes}
		}
		return geomesa.MultiPolygon{Polygons: polys}, total, nil
	case geomCollection:
		count, cn, err := readUint32(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[cn:]
		total := 1 + cn
		members := make([]geomesa.Geometry, count)
		for i := 0; i < int(count); i++ {
			memberLen, ln, err := readUint32(rest)
			if err != nil {
				return nil, 0, err
			}
			rest = rest[ln:]
			total += ln
			if int(memberLen) > len(rest) {
				return nil, 0, fmt.Errorf("%w: truncated geometry collection member", geomesa.ErrSerde)
			}
			m, _, err := decodeGeometry(rest[:memberLen])
			if err != nil {
				return nil, 0, err
			}
			members[i] = m
			rest = rest[memberLen:]
			total += int(memberLen)
		}
		return geomesa.GeometryCollection{Members: members}, total, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown geometry tag %d", geomesa.ErrSerde, tag)
	}
}

func encodePoint(p geomesa.Point) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(p.X))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(p.Y))
	return buf
}

func decodePoint(data []byte) (geomesa.Point, int, error) {
	if len(data) < 16 {
		return geomesa.Point{}, 0, fmt.Errorf("%w: point payload too short", geomesa.ErrSerde)
	}
	x := math.Float64frombits(binary.BigEndian.Uint64(data[0:8]))
	y := math.Float64frombits(binary.BigEndian.Uint64(data[8:16]))
	return geomesa.Point{X: x, Y: y}, 16, nil
}

func encodePoints(pts []geomesa.Point) []byte {
	buf := appendUint32(nil, uint32(len(pts)))
	for _, p := range pts {
		buf = append(buf, encodePoint(p)...)
	}
	return buf
}

func decodePoints(data []byte) ([]geomesa.Point, int, error) {
	count, n, err := readUint32(data)
	if err != nil {
		return nil, 0, err
	}
	data = data[n:]
	total := n
	pts := make([]geomesa.Point, count)
	for i := 0; i < int(count); i++ {
		p, pn, err := decodePoint(data)
		if err != nil {
			return nil, 0, err
		}
		pts[i] = p
		data = data[pn:]
		total += pn
	}
	return pts, total, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readUint32(data []byte) (uint32, int, error) {
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("%w: truncated length", geomesa.ErrSerde)
	}
	return binary.BigEndian.Uint32(data[:4]), 4, nil
}
