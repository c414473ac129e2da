// Package serializer 保证同一个 key (房间 ID) 上的任务严格按提交顺序逐个执行。
//
// 每个活跃的 key 有一个队列和一个工作 goroutine，队列排空后 goroutine 退出，
// 不同 key 之间互不阻塞，也没有全局锁贯穿任务执行。
package serializer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrClosed 在 Serializer 关闭后提交任务时返回。
var ErrClosed = errors.New("serializer: closed")

// Task 是在 key 的临界区内执行的工作。传入的 ctx 不会随调用方取消。
type Task func(ctx context.Context) (any, error)

// Observer 接收队列启停事件，用于指标。
type Observer interface {
	QueueStarted()
	QueueStopped()
}

type job struct {
	ctx  context.Context
	task Task
	done chan Result
}

// Result 是任务的返回值。
type Result struct {
	Value any
	Err   error
}

type queue struct {
	jobs []job
}

// Serializer 是按 key 串行化的任务执行器。
type Serializer struct {
	mu     sync.Mutex
	queues map[string]*queue
	closed bool
	wg     sync.WaitGroup
	obs    Observer
}

// New 创建 Serializer。obs 可以为 nil。
func New(obs Observer) *Serializer {
	return &Serializer{
		queues: make(map[string]*queue),
		obs:    obs,
	}
}

// Enqueue 把任务排到 key 的队列末尾，返回一个只会收到一次结果的 channel。
// 提交本身从不阻塞。
func (s *Serializer) Enqueue(ctx context.Context, key string, task Task) (<-chan Result, error) {
	done := make(chan Result, 1)
	j := job{ctx: context.WithoutCancel(ctx), task: task, done: done}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	q, ok := s.queues[key]
	if ok {
		q.jobs = append(q.jobs, j)
		return done, nil
	}
	q = &queue{jobs: []job{j}}
	s.queues[key] = q
	s.wg.Add(1)
	if s.obs != nil {
		s.obs.QueueStarted()
	}
	go s.drain(key, q)
	return done, nil
}

// drain 依次执行 key 队列中的任务，队列为空时删除自身并退出。
func (s *Serializer) drain(key string, q *queue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(q.jobs) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			if s.obs != nil {
				s.obs.QueueStopped()
			}
			return
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		s.mu.Unlock()

		j.done <- s.execute(key, j)
	}
}

func (s *Serializer) execute(key string, j job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"component": "serializer",
				"key":       key,
				"panic":     r,
			}).Error("Task panicked")
			res = Result{Err: fmt.Errorf("serializer: task panicked: %v", r)}
		}
	}()
	val, err := j.task(j.ctx)
	return Result{Value: val, Err: err}
}

// Run 提交任务并等待结果。调用方 ctx 取消时立即返回 ctx.Err()，
// 但任务仍会在队列中执行完毕。
func Run[T any](ctx context.Context, s *Serializer, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	done, err := s.Enqueue(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	select {
	case res := <-done:
		v, _ := res.Value.(T)
		return v, res.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Active 返回当前有活跃队列的 key 数量。
func (s *Serializer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Close 拒绝新任务并等待已排队的任务全部完成。
func (s *Serializer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
