package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== GenerateRateLimiter 生成限流器 ====================

// GenerateRateLimiter 生成接口限流器
// 防止用户（或匿名 IP）连续触发生成导致上游排队和额度浪费
type GenerateRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// 全局限流器实例
var globalLimiter = &GenerateRateLimiter{}

// GetLimiter 获取全局限流器
func GetLimiter() *GenerateRateLimiter {
	return globalLimiter
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行
// key: 限流键，如 "user:123" 或 "ip:1.2.3.4"
// interval: 冷却间隔
func (r *GenerateRateLimiter) Check(key string, interval time.Duration) CheckResult {
	// 获取或创建锁条目
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	// 更新最后执行时间
	entry.lastTime = now
	return CheckResult{
		Allowed:    true,
		RetryAfter: 0,
	}
}

// Reset 重置指定 key 的限流
func (r *GenerateRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 生成工具 ====================

// GenerateKey 生成限流键，登录用户按 ID，匿名按来源 IP
func GenerateKey(userID int64, clientIP string) string {
	if userID > 0 {
		return fmt.Sprintf("user:%d", userID)
	}
	return fmt.Sprintf("ip:%s", clientIP)
}

// ==================== Gin 中间件 ====================

// GenerateCooldown 生成接口冷却中间件
// 需要挂在 OptionalAuth 之后，否则拿不到 userID
func GenerateCooldown(interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GenerateKey(GetUserID(c), c.ClientIP())
		result := globalLimiter.Check(key, interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": fmt.Sprintf("请求过于频繁，请 %d 秒后重试", int(result.RetryAfter.Seconds())+1),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
