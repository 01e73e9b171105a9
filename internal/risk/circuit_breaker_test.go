package risk

import "testing"

func TestBreakerTripsOnConsecutiveErrors(t *testing.T) {
	b := NewBreaker(3)

	if err := b.Allow(); err != nil {
		t.Fatalf("初始状态应允许: %v", err)
	}

	b.OnError()
	b.OnError()
	if err := b.Allow(); err != nil {
		t.Fatalf("未达阈值不应熔断: %v", err)
	}

	b.OnError()
	if err := b.Allow(); err == nil {
		t.Fatal("连续 3 次失败应熔断")
	}
	// 熔断后保持打开
	if err := b.Allow(); err == nil {
		t.Fatal("熔断状态应保持")
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(2)
	b.OnError()
	b.OnSuccess()
	b.OnError()
	if err := b.Allow(); err != nil {
		t.Errorf("成功应清空连续错误计数: %v", err)
	}
}

func TestBreakerHaltAndResume(t *testing.T) {
	b := NewBreaker(0) // 不按错误数熔断
	for i := 0; i < 10; i++ {
		b.OnError()
	}
	if err := b.Allow(); err != nil {
		t.Errorf("阈值为 0 时不应按错误数熔断: %v", err)
	}

	b.Halt()
	if err := b.Allow(); err == nil {
		t.Error("手动熔断后应拒绝")
	}
	b.Resume()
	if err := b.Allow(); err != nil {
		t.Errorf("恢复后应允许: %v", err)
	}
}

func TestNilBreakerIsNoop(t *testing.T) {
	var b *Breaker
	b.OnError()
	b.Halt()
	if err := b.Allow(); err != nil {
		t.Errorf("nil 断路器应永远允许: %v", err)
	}
}
