package workload_test

import (
	"sync"

	"github.com/nimburion/recordbench/pkg/recordstore"
	"github.com/nimburion/recordbench/pkg/workload"
)

func serialized(f workload.Factory) workload.Factory {
	var mu sync.Mutex
	return func(worker int) recordstore.DB {
		mu.Lock()
		defer mu.Unlock()
		return f(worker)
	}
}
