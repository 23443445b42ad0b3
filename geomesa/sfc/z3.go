package sfc

// Z3 domain: x,y as Z2 plus a time coordinate normalised to seconds-within-bin
// (spec §4.2/§4.3). Three dimensions of 21 bits each interleave into 63 bits,
// leaving the top bit of a uint64 unused (matching the teacher's convention
// of reserving the high bit of a row-key component for a sign/shard flag).
const Z3Bits = 21

// Z3Encode maps (lon,lat, secondsInBin) to a single z-value. secondsInBin
// must be in [0, binLengthSeconds): callers look it up via period.Bin first
// and pass binLengthSeconds so the time dimension is normalised against the
// feature type's configured interval, not a fixed constant.
func Z3Encode(lon, lat float64, secondsInBin, binLengthSeconds int64) (uint64, error) {
	x, err := Normalize(lon, z2MinLon, z2MaxLon, Z3Bits)
	if err != nil {
		return 0, err
	}
	y, err := Normalize(lat, z2MinLat, z2MaxLat, Z3Bits)
	if err != nil {
		return 0, err
	}
	t, err := Normalize(float64(secondsInBin), 0, float64(binLengthSeconds), Z3Bits)
	if err != nil {
		return 0, err
	}
	return Interleave([]uint64{x, y, t}, Z3Bits), nil
}

// Z3Decode inverts Z3Encode, returning lon, lat and secondsInBin.
func Z3Decode(z uint64, binLengthSeconds int64) (lon, lat float64, secondsInBin int64) {
	dims := Deinterleave(z, 3, Z3Bits)
	lon = Denormalize(dims[0], z2MinLon, z2MaxLon, Z3Bits)
	lat = Denormalize(dims[1], z2MinLat, z2MaxLat, Z3Bits)
	secondsInBin = int64(Denormalize(dims[2], 0, float64(binLengthSeconds), Z3Bits))
	return
}

// Z3Ranges enumerates the z-ranges covering a query box and a [loSeconds,
// hiSeconds) window within a single bin. The planner is responsible for
// calling this once per bin the query's time predicate spans (spec §4.3).
func Z3Ranges(minLon, minLat, maxLon, maxLat float64, loSeconds, hiSeconds, binLengthSeconds int64, precisionBits, targetRangeCount int) ([]Range, error) {
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

	xLo, err := Normalize(minLon, z2MinLon, z2MaxLon, Z3Bits)
	if err != nil {
		return nil, err
	}
	xHi, err := Normalize(maxLon, z2MinLon, z2MaxLon, Z3Bits)
	if err != nil {
		return nil, err
	}
	yLo, err := Normalize(minLat, z2MinLat, z2MaxLat, Z3Bits)
	if err != nil {
		return nil, err
	}
	yHi, err := Normalize(maxLat, z2MinLat, z2MaxLat, Z3Bits)
	if err != nil {
		return nil, err
	}
	tLo, err := Normalize(float64(loSeconds), 0, float64(binLengthSeconds), Z3Bits)
	if err != nil {
		return nil, err
	}
	tHi, err := Normalize(float64(hiSeconds), 0, float64(binLengthSeconds), Z3Bits)
	if err != nil {
		return nil, err
	}

	return Decompose([]uint64{xLo, yLo, tLo}, []uint64{xHi, yHi, tHi}, 3, Z3Bits, precisionBits, targetRangeCount), nil
}
