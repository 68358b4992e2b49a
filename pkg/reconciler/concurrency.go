package reconciler

import (
	"sync"

	"github.com/dragon-panic/nclav/pkg/domain"
)

// runBounded runs fn(item) for every item, with at most maxParallel
// concurrent calls, and waits for all of them to finish. Grounded on
// the teacher's worker-pool pattern (a fixed number of workers draining
// a closed work channel) rather than one goroutine-per-item.
func runBounded[T any](items []T, maxParallel int, fn func(T)) {
	if maxParallel <= 0 || maxParallel > len(items) {
		maxParallel = len(items)
	}
	if maxParallel == 0 {
		return
	}

	work := make(chan T, len(items))
	for _, item := range items {
		work <- item
	}
	close(work)

	var wg sync.WaitGroup
	for i := 0; i < maxParallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				fn(item)
			}
		}()
	}
	wg.Wait()
}

// partitionSem returns the counting semaphore bounding concurrent
// partition provisions within enclaveId, per spec.md §5's fan-out
// limit, creating it on first use.
func (r *Reconciler) partitionSem(enclaveId domain.EnclaveId) chan struct{} {
	r.enclaveSemMu.Lock()
	defer r.enclaveSemMu.Unlock()

	sem, ok := r.enclaveSem[enclaveId]
	if !ok {
		sem = make(chan struct{}, r.fanout)
		r.enclaveSem[enclaveId] = sem
	}
	return sem
}

func (r *Reconciler) acquirePartitionSlot(enclaveId domain.EnclaveId) {
	r.partitionSem(enclaveId) <- struct{}{}
}

func (r *Reconciler) releasePartitionSlot(enclaveId domain.EnclaveId) {
	<-r.partitionSem(enclaveId)
}
