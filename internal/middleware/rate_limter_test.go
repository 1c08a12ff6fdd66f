package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter_Check(t *testing.T) {
	limiter := &GenerateRateLimiter{}
	key := "user:1"
	interval := 100 * time.Millisecond

	// 首次允许
	if result := limiter.Check(key, interval); !result.Allowed {
		t.Fatal("首次请求应允许")
	}

	// 冷却期内拒绝
	result := limiter.Check(key, interval)
	if result.Allowed {
		t.Fatal("冷却期内应拒绝")
	}
	if result.RetryAfter <= 0 || result.RetryAfter > interval {
		t.Errorf("剩余冷却时间错误: %v", result.RetryAfter)
	}

	// 冷却结束后放行
	time.Sleep(interval + 10*time.Millisecond)
	if result := limiter.Check(key, interval); !result.Allowed {
		t.Error("冷却结束后应允许")
	}
}

func TestRateLimiter_KeysIndependent(t *testing.T) {
	limiter := &GenerateRateLimiter{}
	interval := time.Minute

	limiter.Check("user:1", interval)
	if result := limiter.Check("user:2", interval); !result.Allowed {
		t.Error("不同 key 互不影响")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter := &GenerateRateLimiter{}
	interval := time.Minute

	limiter.Check("user:1", interval)
	limiter.Reset("user:1")
	if result := limiter.Check("user:1", interval); !result.Allowed {
		t.Error("重置后应立即允许")
	}
}

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey(7, "1.2.3.4"); got != "user:7" {
		t.Errorf("登录用户键错误: %s", got)
	}
	if got := GenerateKey(0, "1.2.3.4"); got != "ip:1.2.3.4" {
		t.Errorf("匿名键错误: %s", got)
	}
}
