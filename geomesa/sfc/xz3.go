package sfc

// XZ3Index computes the XZ-order code for the smallest octree cell that
// fully encloses a (lon,lat) envelope together with a [loSeconds,hiSeconds)
// time interval within one period bin (spec §4.2/§4.3, non-point geometry
// with a time extent).
func XZ3Index(minLon, minLat, maxLon, maxLat float64, loSeconds, hiSeconds, binLengthSeconds int64) (uint64, error) {
	minLon = clamp(minLon, z2MinLon, z2MaxLon)
	maxLon = clamp(maxLon, z2MinLon, z2MaxLon)
	minLat = clamp(minLat, z2MinLat, z2MaxLat)
	maxLat = clamp(maxLat, z2MinLat, z2MaxLat)
	if loSeconds < 0 {
		loSeconds = 0
	}
	if hiSeconds > binLengthSeconds {
		hiSeconds = binLengthSeconds
	}

	spanX := (maxLon - minLon) / (z2MaxLon - z2MinLon)
	spanY := (maxLat - minLat) / (z2MaxLat - z2MinLat)
	spanT := float64(hiSeconds-loSeconds) / float64(binLengthSeconds)
	span := spanX
	if spanY > span {
		span = spanY
	}
	if spanT > span {
		span = spanT
	}
	level := xzLevelForSpan(span, MaxXZLevel)

	cLo, cHi, err := xz3CellCoords(minLon, minLat, maxLon, maxLat, loSeconds, hiSeconds, binLengthSeconds, level)
	if err != nil {
		return 0, err
	}
	for level > 0 && !sameCell(cLo, cHi) {
		level--
		cLo, cHi, err = xz3CellCoords(minLon, minLat, maxLon, maxLat, loSeconds, hiSeconds, binLengthSeconds, level)
		if err != nil {
			return 0, err
		}
	}

	morton := Interleave(cLo, uint(level))
	return xzEncode(level, morton, 3), nil
}

func xz3CellCoords(minLon, minLat, maxLon, maxLat float64, loSeconds, hiSeconds, binLengthSeconds int64, level int) (lo, hi []uint64, err error) {
	xLo, err := Normalize(minLon, z2MinLon, z2MaxLon, uint(level))
	if err != nil {
		return
	}
	yLo, err := Normalize(minLat, z2MinLat, z2MaxLat, uint(level))
	if err != nil {
		return
	}
	tLo, err := Normalize(float64(loSeconds), 0, float64(binLengthSeconds), uint(level))
	if err != nil {
		return
	}
	xHi, err := Normalize(maxLon, z2MinLon, z2MaxLon, uint(level))
	if err != nil {
		return
	}
	yHi, err := Normalize(maxLat, z2MinLat, z2MaxLat, uint(level))
	if err != nil {
		return
	}
	tHi, err := Normalize(float64(hiSeconds), 0, float64(binLengthSeconds), uint(level))
	if err != nil {
		return
	}
	return []uint64{xLo, yLo, tLo}, []uint64{xHi, yHi, tHi}, nil
}

func sameCell(lo, hi []uint64) bool {
	for i := range lo {
		if lo[i] != hi[i] {
			return false
		}
	}
	return true
}

// XZ3Ranges enumerates the XZ-order ranges covering a query envelope and
// time window within a single bin, walking levels exactly as XZ2Ranges.
func XZ3Ranges(minLon, minLat, maxLon, maxLat float64, loSeconds, hiSeconds, binLengthSeconds int64, targetRangeCount int) ([]Range, error) {
	if maxLon < z2MinLon || minLon > z2MaxLon || maxLat < z2MinLat || minLat > z2MaxLat {
		return nil, nil
	}
	minLon = clamp(minLon, z2MinLon, z2MaxLon)
	maxLon = clamp(maxLon, z2MinLon, z2MaxLon)
	minLat = clamp(minLat, z2MinLat, z2MaxLat)
	maxLat = clamp(maxLat, z2MinLat, z2MaxLat)
	if loSeconds < 0 {
		loSeconds = 0
	}
	if hiSeconds > binLengthSeconds {
		hiSeconds = binLengthSeconds
	}

	var out []Range
	for level := 0; level <= MaxXZLevel && len(out) < targetRangeCount; level++ {
		lo, hi, err := xz3CellCoords(minLon, minLat, maxLon, maxLat, loSeconds, hiSeconds, binLengthSeconds, level)
		if err != nil {
			return nil, err
		}
		remaining := targetRangeCount - len(out)
		levelRanges := Decompose(lo, hi, 3, uint(level), level, remaining)
		offset := xzOffset(level, 8)
		for _, r := range levelRanges {
			out = append(out, Range{Lo: r.Lo + offset, Hi: r.Hi + offset})
		}
	}
	return SortRanges(out), nil
}
