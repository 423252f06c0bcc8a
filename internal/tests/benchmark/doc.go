// Package benchmark provides performance benchmarks for the wspool
// connection pool.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Registration benchmarks never touch the network; send and open
// benchmarks dial an in-process TLS echo server:
//
//	go test -bench=BenchmarkSend -benchmem -benchtime=5s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
