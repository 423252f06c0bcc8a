// Package omap provides a concurrent insertion-ordered map.
//
// This package implements a mutex-guarded map that remembers the order
// in which keys were first inserted, with the following features:
//
//   - Ordered Iteration: Range, Keys, and Values walk entries in
//     insertion order
//   - Stable Order: overwriting an existing key keeps its original
//     position; deleting and re-inserting moves it to the end
//   - Snapshots: Keys and Values return copies safe to use after
//     the call returns
//
// Usage:
//
//	m := omap.New[string, *Conn]()
//	m.Set("a", connA)
//	m.Range(func(k string, v *Conn) bool { ... })
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has, Count)
// use RLock, write operations (Set, Delete) use Lock.
package omap
