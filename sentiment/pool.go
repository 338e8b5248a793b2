package sentiment

import (
	"context"
	"fmt"
	"sync"
)

// Pool 固定大小的计算协程池。
// 情感打分、词云提取这类 CPU 活一律丢进来等结果，
// 不许在事件分发路径上直接算，否则一个房间刷屏会拖住整个进程的推送。
type Pool struct {
	scorer *Scorer
	tasks  chan task
	wg     sync.WaitGroup

	// mu 让入队和 Close 关通道互斥，关闭竞态下不会写已关通道
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

type task struct {
	fn   func()
	done chan struct{}
}

// NewPool 创建协程池。workers <= 0 时取 4。
func NewPool(workers int, scorer *Scorer) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{
		scorer: scorer,
		tasks:  make(chan task, workers*4),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.fn()
		close(t.done)
	}
}

// Do 提交任务并等待完成。ctx 取消后立刻返回，任务可能仍会被执行，
// 但调用方此时不应再读取闭包里的结果。
func (p *Pool) Do(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan struct{})}
	if err := p.submit(ctx, t); err != nil {
		return err
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) submit(ctx context.Context, t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("pool closed")
	}
	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Score 在池里给文本打分并返回分数与标签。
func (p *Pool) Score(ctx context.Context, content string) (float64, string, error) {
	var (
		score float64
		label string
	)
	if err := p.Do(ctx, func() {
		score, label = p.scorer.ScoreLabel(content)
	}); err != nil {
		return 0, "", err
	}
	return score, label, nil
}

// Close 关闭池并等待在跑的任务结束。幂等。
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}
