package motorcan

import "fmt"

// Stats is a snapshot of the session counters. The counters are read
// independently so a snapshot may straddle a frame.
type Stats struct {
	Rx       uint64
	Tx       uint64
	RxErrors uint64
}

func (st Stats) String() string {
	return fmt.Sprintf("rx: %d tx: %d errors: %d", st.Rx, st.Tx, st.RxErrors)
}

func (s *Session) Stats() Stats {
	return Stats{
		Rx:       s.rxCount.Load(),
		Tx:       s.txCount.Load(),
		RxErrors: s.rxErrors.Load(),
	}
}

func (s *Session) resetStats() {
	s.rxCount.Store(0)
	s.txCount.Store(0)
	s.rxErrors.Store(0)
}
