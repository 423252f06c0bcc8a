// Package omap provides a concurrent insertion-ordered map.
package omap

// Range iterates over all key-value pairs in insertion order.
//
// The callback returns false to stop iteration. Iteration runs over a
// snapshot of the order taken at call time, so the callback may call
// back into the map without deadlocking.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	m.mu.RLock()
	order := make([]K, len(m.order))
	copy(order, m.order)
	m.mu.RUnlock()

	for _, k := range order {
		v, ok := m.Get(k)
		if !ok {
			// Deleted since the snapshot was taken.
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Keys returns all keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]K, len(m.order))
	copy(keys, m.order)
	return keys
}

// Values returns all values in insertion order.
func (m *Map[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	values := make([]V, 0, len(m.order))
	for _, k := range m.order {
		values = append(values, m.items[k])
	}
	return values
}
