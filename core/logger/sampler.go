package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets through keep of every every events. A zero every passes everything.
type sampler struct {
	keep  atomic.Int64
	every atomic.Int64
	seen  atomic.Int64
}

func (s *sampler) set(keep, every int) {
	if keep <= 0 || every <= 0 {
		keep, every = 0, 0
	}
	if keep > every {
		keep = every
	}
	s.keep.Store(int64(keep))
	s.every.Store(int64(every))
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	every := s.every.Load()
	if every <= 0 {
		return true
	}
	n := (s.seen.Add(1) - 1) % every
	return n < s.keep.Load()
}

// parseSample reads "k/n" or "n" (meaning 1/n). Anything else yields 0, 0.
func parseSample(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if num, den, ok := strings.Cut(spec, "/"); ok {
		k, err1 := strconv.Atoi(strings.TrimSpace(num))
		n, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return k, n
	}
	n, err := strconv.Atoi(spec)
	if err != nil || n <= 0 {
		return 0, 0
	}
	return 1, n
}
