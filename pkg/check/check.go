package check // import "waitmap.dev/cmd/pkg/check"

import "sync"

// Summary is the rendered outcome of a stress run.
type Summary struct {
	Gets struct {
		Resolved  int `json:"resolved"`
		Closed    int `json:"closed"`
		Cancelled int `json:"cancelled"`
	} `json:"gets"`
	Inserts struct {
		OK        int `json:"ok"`
		Duplicate int `json:"duplicate"`
		Blocked   int `json:"blocked"`
	} `json:"inserts"`
}

// S tallies operation outcomes across concurrent workers.
type S struct {
	mu sync.Mutex

	s Summary
}

func (s *S) GetResolved() {
	s.mu.Lock()
	s.s.Gets.Resolved++
	s.mu.Unlock()
}

func (s *S) GetClosed() {
	s.mu.Lock()
	s.s.Gets.Closed++
	s.mu.Unlock()
}

func (s *S) GetCancelled() {
	s.mu.Lock()
	s.s.Gets.Cancelled++
	s.mu.Unlock()
}

func (s *S) InsertOK() {
	s.mu.Lock()
	s.s.Inserts.OK++
	s.mu.Unlock()
}

func (s *S) InsertDuplicate() {
	s.mu.Lock()
	s.s.Inserts.Duplicate++
	s.mu.Unlock()
}

func (s *S) InsertBlocked() {
	s.mu.Lock()
	s.s.Inserts.Blocked++
	s.mu.Unlock()
}

func (s *S) Results() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}
