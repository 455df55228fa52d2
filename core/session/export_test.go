package session

import "time"

// SetBeforeRemove installs a hook called before each HardClear deletion.
func SetBeforeRemove(s *Store, fn func(part string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeRemove = fn
}

// SetActivity overwrites the activity timestamp of id, creating it if needed.
func SetActivity(s *Store, id ID, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = ts
}
