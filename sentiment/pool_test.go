package sentiment

import (
	"context"
	"sync"
	"testing"

	"github.com/cydxin/live-sdk/message"
)

func TestPool_Score(t *testing.T) {
	p := NewPool(2, testScorer())
	defer p.Close()

	score, label, err := p.Score(context.Background(), "太棒了")
	if err != nil {
		t.Fatalf("Score err: %v", err)
	}
	if score != 0.75 || label != message.LabelPositive {
		t.Fatalf("unexpected result: %v %s", score, label)
	}
}

func TestPool_ConcurrentDo(t *testing.T) {
	p := NewPool(4, testScorer())
	defer p.Close()

	var (
		mu  sync.Mutex
		sum int
		wg  sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), func() {
				mu.Lock()
				sum++
				mu.Unlock()
			})
			if err != nil {
				t.Errorf("Do err: %v", err)
			}
		}()
	}
	wg.Wait()
	if sum != 100 {
		t.Fatalf("expected 100 tasks done, got %d", sum)
	}
}

func TestPool_CanceledContext(t *testing.T) {
	p := NewPool(1, testScorer())
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 已取消的 ctx 下提交要么立即返回错误，要么任务恰好已入队完成，两者都不阻塞
	done := make(chan struct{})
	go func() {
		_, _, _ = p.Score(ctx, "棒")
		close(done)
	}()
	<-done
}

func TestPool_SubmitRacingClose(t *testing.T) {
	// 提交和关闭赛跑不能 panic，关闭后的提交只能拿到错误
	for i := 0; i < 100; i++ {
		p := NewPool(2, testScorer())
		var wg sync.WaitGroup
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = p.Do(context.Background(), func() {})
			}()
		}
		p.Close()
		wg.Wait()
	}
}

func TestPool_CloseIdempotent(t *testing.T) {
	p := NewPool(2, testScorer())
	p.Close()
	p.Close()

	if err := p.Do(context.Background(), func() {}); err == nil {
		t.Fatalf("expected error after close")
	}
}
