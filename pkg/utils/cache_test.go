package utils

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	SetCache("test:key", "value", time.Minute)

	got, ok := GetCache("test:key")
	if !ok || got != "value" {
		t.Errorf("GetCache() = %q, %v", got, ok)
	}
}

func TestCache_Expired(t *testing.T) {
	// Unix 秒级精度，过期时间设为负值确保立即过期
	SetCache("test:expired", "value", -2*time.Second)

	if _, ok := GetCache("test:expired"); ok {
		t.Error("过期缓存不应命中")
	}
}

func TestCache_Delete(t *testing.T) {
	SetCache("test:delete", "value", time.Minute)
	DeleteCache("test:delete")

	if _, ok := GetCache("test:delete"); ok {
		t.Error("删除后不应命中")
	}
}
