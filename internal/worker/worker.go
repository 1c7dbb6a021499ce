package worker

// Worker executes jobs received on its private channel until stopped.
type Worker struct {
	id         int
	pool       *jobChannelPool
	handler    turnHandler
	jobChannel chan Job
}

func newWorker(id int, pool *jobChannelPool, handler turnHandler) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		handler:    handler,
		jobChannel: make(chan Job),
	}
}

// Start runs the worker loop in its own goroutine.
func (w *Worker) Start() {
	go func() {
		for {
			job := <-w.jobChannel
			switch job.Type {
			case Stop:
				w.pool.retire(w.jobChannel)
				return
			case Turn:
				w.handler.handleTurn(job.Turn)
			}
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}
