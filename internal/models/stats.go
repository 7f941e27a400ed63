package models

// Stats are the aggregate counts shown above the grid.
type Stats struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Ready     int `json:"ready"`
	Automated int `json:"automated"`
	// Other counts records whose status matches none of the known values.
	Other int `json:"other"`
}

// ComputeStats tallies records by exact status equality.
func ComputeStats(records []Record) Stats {
	s := Stats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusDraft:
			s.Draft++
		case StatusReady:
			s.Ready++
		case StatusAutomated:
			s.Automated++
		default:
			s.Other++
		}
	}
	return s
}
