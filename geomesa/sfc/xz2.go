package sfc

// XZ2Index computes the XZ-order code for the smallest cell that fully
// encloses a (possibly non-point) envelope, per spec §4.2. The row-key
// codec truncates this to a fixed byte prefix; see MaxXZLevel.
func XZ2Index(minLon, minLat, maxLon, maxLat float64) (uint64, error) {
	minLon = clamp(minLon, z2MinLon, z2MaxLon)
	maxLon = clamp(maxLon, z2MinLon, z2MaxLon)
	minLat = clamp(minLat, z2MinLat, z2MaxLat)
	maxLat = clamp(maxLat, z2MinLat, z2MaxLat)

	spanX := (maxLon - minLon) / (z2MaxLon - z2MinLon)
	spanY := (maxLat - minLat) / (z2MaxLat - z2MinLat)
	span := spanX
	if spanY > span {
		span = spanY
	}
	level := xzLevelForSpan(span, MaxXZLevel)

	cellXLo, cellYLo, cellXHi, cellYHi, err := xz2CellCoords(minLon, minLat, maxLon, maxLat, level)
	if err != nil {
		return 0, err
	}
	// Shrink the level until the envelope's min and max corners land in the
	// same cell (xzLevelForSpan is a fast estimate, not exact at boundaries).
	for level > 0 && (cellXLo != cellXHi || cellYLo != cellYHi) {
		level--
		cellXLo, cellYLo, cellXHi, cellYHi, err = xz2CellCoords(minLon, minLat, maxLon, maxLat, level)
		if err != nil {
			return 0, err
		}
	}

	morton := Interleave([]uint64{cellXLo, cellYLo}, uint(level))
	return xzEncode(level, morton, 2), nil
}

// xz2CellCoords returns the level-L grid cell index of the envelope's min
// and max corners.
func xz2CellCoords(minLon, minLat, maxLon, maxLat float64, level int) (xLo, yLo, xHi, yHi uint64, err error) {
	xLo, err = Normalize(minLon, z2MinLon, z2MaxLon, uint(level))
	if err != nil {
		return
	}
	yLo, err = Normalize(minLat, z2MinLat, z2MaxLat, uint(level))
	if err != nil {
		return
	}
	xHi, err = Normalize(maxLon, z2MinLon, z2MaxLon, uint(level))
	if err != nil {
		return
	}
	yHi, err = Normalize(maxLat, z2MinLat, z2MaxLat, uint(level))
	if err != nil {
		return
	}
	return
}

// XZ2Ranges enumerates the XZ-order ranges covering a query envelope. It
// walks every level from 0 to MaxXZLevel: at coarse levels this yields the
// ancestor cells that a larger-than-query geometry may have been filed
// under, at fine levels it yields the cells fully inside the query box
// (spec §4.2 "(a) every cell fully inside the envelope, (b) every ancestor
// cell that may contain a geometry intersecting the envelope"). Budget is
// spent level by level, coarsest first, since ancestor coverage is
// mandatory for correctness while deep descendant coverage only tightens
// precision.
func XZ2Ranges(minLon, minLat, maxLon, maxLat float64, targetRangeCount int) ([]Range, error) {
	if maxLon < z2MinLon || minLon > z2MaxLon || maxLat < z2MinLat || minLat > z2MaxLat {
		return nil, nil
	}
	minLon = clamp(minLon, z2MinLon, z2MaxLon)
	maxLon = clamp(maxLon, z2MinLon, z2MaxLon)
	minLat = clamp(minLat, z2MinLat, z2MaxLat)
	maxLat = clamp(maxLat, z2MinLat, z2MaxLat)

	var out []Range
	for level := 0; level <= MaxXZLevel && len(out) < targetRangeCount; level++ {
		xLo, err := Normalize(minLon, z2MinLon, z2MaxLon, uint(level))
		if err != nil {
			return nil, err
		}
		xHi, err := Normalize(maxLon, z2MinLon, z2MaxLon, uint(level))
		if err != nil {
			return nil, err
		}
		yLo, err := Normalize(minLat, z2MinLat, z2MaxLat, uint(level))
		if err != nil {
			return nil, err
		}
		yHi, err := Normalize(maxLat, z2MinLat, z2MaxLat, uint(level))
		if err != nil {
			return nil, err
		}

		remaining := targetRangeCount - len(out)
		levelRanges := Decompose([]uint64{xLo, yLo}, []uint64{xHi, yHi}, 2, uint(level), level, remaining)
		offset := xzOffset(level, 4)
		for _, r := range levelRanges {
			out = append(out, Range{Lo: r.Lo + offset, Hi: r.Hi + offset})
		}
	}
	return SortRanges(out), nil
}
