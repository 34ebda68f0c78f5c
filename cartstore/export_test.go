package cartstore

// Put stores a raw value under a scope, bypassing the codec.
func (l *LocalCartStore) Put(scope string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store[scope] = append([]byte(nil), data...)
}
