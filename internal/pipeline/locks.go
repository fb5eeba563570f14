package pipeline

import "sync"

// wordLocks serializes work on the same word while leaving different words
// independent. Entries are dropped once no caller holds or waits on them.
type wordLocks struct {
	mu    sync.Mutex
	locks map[string]*wordLock
}

type wordLock struct {
	mu   sync.Mutex
	refs int
}

func newWordLocks() *wordLocks {
	return &wordLocks{locks: make(map[string]*wordLock)}
}

// lock blocks until word is free and returns the matching unlock.
func (l *wordLocks) lock(word string) (unlock func()) {
	l.mu.Lock()
	wl, ok := l.locks[word]
	if !ok {
		wl = &wordLock{}
		l.locks[word] = wl
	}
	wl.refs++
	l.mu.Unlock()

	wl.mu.Lock()
	return func() {
		wl.mu.Unlock()
		l.mu.Lock()
		wl.refs--
		if wl.refs == 0 {
			delete(l.locks, word)
		}
		l.mu.Unlock()
	}
}

func (l *wordLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
