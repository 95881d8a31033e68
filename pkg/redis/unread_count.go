package redis

import (
	"fmt"
	"strconv"
	"time"
)

// 未读消息计数相关常量
const (
	// UnreadCountKeyPrefix 学生未读消息计数key前缀
	UnreadCountKeyPrefix = "edu:unread:"
	// unreadCountTTL 计数过期时间，避免无限增长
	unreadCountTTL = 24 * time.Hour
)

func unreadKey(studentID string) string {
	return UnreadCountKeyPrefix + studentID
}

// IncrementUnreadCount 增加学生未读消息计数
// 管理员/学校回复学生时调用
func IncrementUnreadCount(studentID string) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	key := unreadKey(studentID)

	if err := client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("增加未读消息计数失败: %w", err)
	}

	if err := client.Expire(ctx, key, unreadCountTTL).Err(); err != nil {
		return fmt.Errorf("设置未读消息计数TTL失败: %w", err)
	}

	return nil
}

// DecrementUnreadCount 减少学生未读消息计数
func DecrementUnreadCount(studentID string) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	key := unreadKey(studentID)

	if err := client.Decr(ctx, key).Err(); err != nil {
		return fmt.Errorf("减少未读消息计数失败: %w", err)
	}

	// 计数为0或负数时删除key
	count, err := client.Get(ctx, key).Int64()
	if err == nil && count <= 0 {
		client.Del(ctx, key)
	}

	return nil
}

// GetUnreadCount 获取学生未读消息计数
// key不存在返回-1，表示需要从数据库回源
func GetUnreadCount(studentID string) (int64, error) {
	if client == nil {
		return 0, fmt.Errorf("redis客户端未初始化")
	}

	key := unreadKey(studentID)

	result, err := client.Get(ctx, key).Result()
	if err != nil {
		if err.Error() == "redis: nil" {
			return -1, nil
		}
		return 0, fmt.Errorf("获取未读消息计数失败: %w", err)
	}

	count, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析未读消息计数失败: %w", err)
	}

	return count, nil
}

// SetUnreadCount 设置学生未读消息计数（数据库回源后写回）
func SetUnreadCount(studentID string, count int64) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	if err := client.Set(ctx, unreadKey(studentID), count, unreadCountTTL).Err(); err != nil {
		return fmt.Errorf("设置未读消息计数失败: %w", err)
	}

	return nil
}

// ResetUnreadCount 重置学生未读消息计数为0
func ResetUnreadCount(studentID string) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	if err := client.Del(ctx, unreadKey(studentID)).Err(); err != nil {
		return fmt.Errorf("重置未读消息计数失败: %w", err)
	}

	return nil
}
