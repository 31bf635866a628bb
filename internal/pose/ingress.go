package pose

// Detection is the raw output of one pose-detection call.
type Detection struct {
	Landmarks      []Landmark `json:"landmarks" msgpack:"landmarks"`
	WorldLandmarks []Landmark `json:"world_landmarks,omitempty" msgpack:"world_landmarks"`
	TimestampMs    int64      `json:"timestamp_ms" msgpack:"timestamp_ms"`
}

// Ingest turns a raw detection into a Snapshot.
// It returns false when no landmarks were detected, which callers treat as
// "skip this frame". Landmark count, order and confidence are not validated
// here; each consumer decides which landmarks it can use.
func Ingest(d Detection) (*Snapshot, bool) {
	if len(d.Landmarks) == 0 {
		return nil, false
	}

	s := &Snapshot{
		Landmarks:   append([]Landmark(nil), d.Landmarks...),
		TimestampMs: d.TimestampMs,
	}
	if len(d.WorldLandmarks) > 0 {
		s.WorldLandmarks = append([]Landmark(nil), d.WorldLandmarks...)
	}

	return s, true
}
