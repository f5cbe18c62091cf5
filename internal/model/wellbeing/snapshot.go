package wellbeing

import "maps"

// Record is an opaque activity log entry, field name to value.
type Record map[string]any

// Snapshot is a point-in-time capture of a user's recent activity records.
// It is taken once per chat session and never modified afterwards.
type Snapshot struct {
	Study []Record `json:"study"`
	Sleep []Record `json:"sleep"`
	Mood  []Record `json:"mood"`
}

// Counts summarises how many records of each kind a snapshot holds.
type Counts struct {
	Study int `json:"study"`
	Sleep int `json:"sleep"`
	Mood  int `json:"mood"`
}

// Counts returns the length of each sequence.
func (s Snapshot) Counts() Counts {
	return Counts{Study: len(s.Study), Sleep: len(s.Sleep), Mood: len(s.Mood)}
}

// Normalize replaces nil sequences with empty ones so the snapshot always
// serializes as three lists.
func (s Snapshot) Normalize() Snapshot {
	if s.Study == nil {
		s.Study = []Record{}
	}
	if s.Sleep == nil {
		s.Sleep = []Record{}
	}
	if s.Mood == nil {
		s.Mood = []Record{}
	}
	return s
}

// Clone returns a normalized copy that shares no sequence or record with s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Study: cloneRecords(s.Study),
		Sleep: cloneRecords(s.Sleep),
		Mood:  cloneRecords(s.Mood),
	}
}

func cloneRecords(records []Record) []Record {
	copied := make([]Record, len(records))
	for i, record := range records {
		copied[i] = maps.Clone(record)
	}
	return copied
}
