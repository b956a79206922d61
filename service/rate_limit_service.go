package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimitService 通用请求限流（固定窗口计数）。
// Redis Key 设计：cm:rl:{scope}:{key}:{窗口起点} -> 计数 (TTL = 窗口)
//
// 作为注入的协作者使用：进程内构造一次，测试里用 Reset 清空。
// 与消息数据无关，消息核心不感知它的存在。
type RateLimitService struct {
	rdb *redis.Client

	// Window 窗口长度；Limit 窗口内允许的请求数
	Window time.Duration
	Limit  int64
}

func NewRateLimitService(rdb *redis.Client, window time.Duration, limit int64) *RateLimitService {
	if window <= 0 {
		window = time.Minute
	}
	// 窗口起点按秒计算，亚秒窗口向上取整到 1s，避免整除 0
	if window < time.Second {
		window = time.Second
	}
	if limit <= 0 {
		limit = 60
	}
	return &RateLimitService{rdb: rdb, Window: window, Limit: limit}
}

func (s *RateLimitService) key(scope, key string, windowStart int64) string {
	return fmt.Sprintf("cm:rl:%s:%s:%d", scope, key, windowStart)
}

// Allow 判断 scope/key（通常是 route/user_id）当前窗口内是否还允许请求。
// Redis 不可用时放行：限流是保护手段，不能变成单点故障。
func (s *RateLimitService) Allow(ctx context.Context, scope, key string) (bool, error) {
	if s == nil || s.rdb == nil {
		return true, nil
	}

	windowStart := time.Now().Unix() / int64(s.Window.Seconds())
	k := s.key(scope, key, windowStart)

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, s.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= s.Limit, nil
}

// Reset 清空某个 scope/key 的计数（测试用）。
func (s *RateLimitService) Reset(ctx context.Context, scope, key string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	windowStart := time.Now().Unix() / int64(s.Window.Seconds())
	return s.rdb.Del(ctx, s.key(scope, key, windowStart)).Err()
}
