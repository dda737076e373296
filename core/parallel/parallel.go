// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Span is the half-open index range [Start, End).
type Span struct {
	Start, End int
}

// Split cuts [0, items) into at most workers contiguous spans of near-equal
// size. workers below 1 counts as one.
func Split(items, workers int) []Span {
	if items <= 0 {
		return nil
	}
	workers = min(max(workers, 1), items)
	size := (items + workers - 1) / workers

	spans := make([]Span, 0, workers)
	for start := 0; start < items; start += size {
		spans = append(spans, Span{Start: start, End: min(start+size, items)})
	}
	return spans
}

// Parallelize runs fn over one span per CPU core and waits for all of them.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.NumCPU(), fn)
}

// ParallelizeN is Parallelize with an explicit worker count.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	spans := Split(items, workers)
	if len(spans) == 1 {
		fn(spans[0].Start, spans[0].End)
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(spans))
	for _, sp := range spans {
		go func() {
			defer wg.Done()
			fn(sp.Start, sp.End)
		}()
	}
	wg.Wait()
}

// ParallelizeWithThreshold stays on the calling goroutine while items is at
// most threshold.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
