package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrDispatcherBusy is returned when the job queue is full.
	ErrDispatcherBusy = errors.New("dispatcher queue is full")
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

type conversationQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher fans jobs out to the worker pool, round-robin across
// conversations so one busy conversation cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	handler  turnHandler
	logger   *zap.Logger

	mu        sync.Mutex
	queues    map[int64]*conversationQueue
	ready     *list.List // conversation ids waiting for a worker
	positions map[int64]*list.Element

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration, handler turnHandler, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		pool:      newJobChannelPool(minWorkers, maxWorkers, idleTimeout, handler),
		jobQueue:  make(chan Job, queueSize),
		handler:   handler,
		logger:    logger,
		queues:    make(map[int64]*conversationQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}
	go d.run()
	return d
}

// Submit queues a job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	select {
	case <-d.quit:
		return ErrDispatcherClosed
	default:
	}
	select {
	case d.jobQueue <- job:
		return nil
	case <-d.quit:
		return ErrDispatcherClosed
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		if !d.dispatchOne() {
			select {
			case job := <-d.jobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				d.drain()
				return
			}
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			d.drain()
			return
		default:
		}
	}
}

// Cancel drops the queued jobs of a conversation, aborting them with err.
func (d *Dispatcher) Cancel(conversationID int64, err error) {
	d.mu.Lock()
	q := d.queues[conversationID]
	delete(d.queues, conversationID)
	if elem, ok := d.positions[conversationID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, conversationID)
	}
	d.mu.Unlock()

	if q == nil {
		return
	}
	for _, job := range q.jobs {
		d.handler.abortTurn(job.Turn, err)
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	id := job.conversationID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[id]
	if q == nil {
		q = &conversationQueue{}
		d.queues[id] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[id] = d.ready.PushBack(id)
}

// dispatchOne hands the next job of the front conversation to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	id := elem.Value.(int64)
	q := d.queues[id]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, id)
		delete(d.queues, id)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		d.handler.abortTurn(job.Turn, ErrDispatcherClosed)
		return true
	}
	debugLog(d.logger, "dispatch job",
		zap.String("type", string(job.Type)),
		zap.Int64("conversation_id", id),
		zap.Int("worker", d.pool.workerID(workerChan)),
	)
	workerChan <- job
	return true
}

// drain aborts everything still queued after Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.jobQueue:
			d.handler.abortTurn(job.Turn, ErrDispatcherClosed)
		default:
			d.mu.Lock()
			queues := d.queues
			d.queues = make(map[int64]*conversationQueue)
			d.ready.Init()
			d.positions = make(map[int64]*list.Element)
			d.mu.Unlock()
			for _, q := range queues {
				for _, job := range q.jobs {
					d.handler.abortTurn(job.Turn, ErrDispatcherClosed)
				}
			}
			return
		}
	}
}

// Close stops dispatching and shuts the worker pool down.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		<-d.done
		d.pool.close()
	})
}
