package livecalls

// CallStats aggregates a reconciled leg list for dashboard headline numbers.
type CallStats struct {
	Total   int `json:"total"`
	Ringing int `json:"ringing"`
	Talking int `json:"talking"`
}

// Stats counts legs by domain state. Legs in unmapped raw states count toward
// Total only.
func Stats(legs []Leg) CallStats {
	s := CallStats{Total: len(legs)}
	for _, l := range legs {
		switch l.State {
		case StateRinging:
			s.Ringing++
		case StateTalking:
			s.Talking++
		}
	}
	return s
}
