package restoration

// maxWorkers caps the diffusion worker pool.
const maxWorkers = 16

// WorkerCount returns the diffusion worker pool size for the given number of
// processing units: two workers per extra core on top of a floor of two, capped at 16.
func WorkerCount(processors int) int {
	if processors < 1 {
		processors = 1
	}
	return min(maxWorkers, 2+(processors-1)*2)
}
