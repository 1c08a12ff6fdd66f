package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// NewAPIClient 创建统一配置的 Resty 客户端
// 它是全系统出站请求的统一入口；生成服务的超时由调用方 context 控制
func NewAPIClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0). // 生成管线不重试，失败即失败
		SetHeader("User-Agent", "Tattoo-Studio-Go/1.0")
}
