package redis

import (
	"encoding/json"
	"fmt"
	"time"
)

// 管理端统计缓存
// 统计聚合（按状态计数、学校消息量Top10）查询较重，短TTL缓存兜底
const (
	// AdminStatsKey 管理端统计缓存key
	AdminStatsKey = "edu:stats:admin"
	// adminStatsTTL 统计缓存过期时间
	adminStatsTTL = 60 * time.Second
)

// CacheAdminStats 写入管理端统计缓存
func CacheAdminStats(stats interface{}) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("序列化统计数据失败: %w", err)
	}

	if err := client.Set(ctx, AdminStatsKey, data, adminStatsTTL).Err(); err != nil {
		return fmt.Errorf("写入统计缓存失败: %w", err)
	}

	return nil
}

// GetCachedAdminStats 读取管理端统计缓存
// 未命中时返回false，调用方回源数据库
func GetCachedAdminStats(out interface{}) (bool, error) {
	if client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}

	data, err := client.Get(ctx, AdminStatsKey).Bytes()
	if err != nil {
		if err.Error() == "redis: nil" {
			return false, nil
		}
		return false, fmt.Errorf("读取统计缓存失败: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("解析统计缓存失败: %w", err)
	}

	return true, nil
}

// InvalidateAdminStats 删除统计缓存（新消息写入后调用）
func InvalidateAdminStats() error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	return client.Del(ctx, AdminStatsKey).Err()
}
