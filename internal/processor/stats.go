package processor

import (
	"fmt"
	"time"
)

// RunStats counts per-review outcomes of one pass.
type RunStats struct {
	Store      string
	Listed     int
	Answered   int
	Deferred   int
	Escalated  int
	Excluded   int
	Failed     int
	Skipped    int
	Duplicates int
	Integrity  int
	Duration   time.Duration
}

// Add accumulates o into s.
func (s *RunStats) Add(o RunStats) {
	s.Listed += o.Listed
	s.Answered += o.Answered
	s.Deferred += o.Deferred
	s.Escalated += o.Escalated
	s.Excluded += o.Excluded
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Duplicates += o.Duplicates
	s.Integrity += o.Integrity
	s.Duration += o.Duration
}

func (s RunStats) String() string {
	return fmt.Sprintf("listed=%d answered=%d deferred=%d escalated=%d excluded=%d failed=%d skipped=%d duplicates=%d integrity=%d",
		s.Listed, s.Answered, s.Deferred, s.Escalated, s.Excluded, s.Failed, s.Skipped, s.Duplicates, s.Integrity)
}
