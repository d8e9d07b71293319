package restoration

import (
	"sync"

	"github.com/pkg/errors"
)

// workerPool is a fixed set of goroutines executing row-range jobs for one pass.
type workerPool struct {
	size int
	jobs chan func()
	wg   sync.WaitGroup

	mu  sync.Mutex
	err error
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = 1
	}
	p := &workerPool{size: size, jobs: make(chan func())}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// parallel splits [0, n) into chunks, runs fn on them across the pool and waits.
// A panic inside fn is recovered and returned as an error; the first one wins.
func (p *workerPool) parallel(n int, fn func(start, end int)) error {
	if n <= 0 {
		return p.Err()
	}
	chunk := (n + p.size*4 - 1) / (p.size * 4)
	if chunk < 1 {
		chunk = 1
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		p.jobs <- func() {
			defer wg.Done()
			defer p.recover()
			fn(start, end)
		}
	}
	wg.Wait()
	return p.Err()
}

func (p *workerPool) recover() {
	if r := recover(); r != nil {
		p.setErr(errors.Errorf("diffusion worker panic: %v", r))
	}
}

func (p *workerPool) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// Err returns the first error raised by a job.
func (p *workerPool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// close stops the workers and waits for them to exit.
func (p *workerPool) close() {
	close(p.jobs)
	p.wg.Wait()
}
