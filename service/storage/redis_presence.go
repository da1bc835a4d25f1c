package storage

import (
	"context"
	"errors"
	"time"

	"PPChat/logger"
	"PPChat/tools/errs"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 在线 key: im:presence:<user>
// value: connID；TTL 限制节点崩溃后用户残留在线的时长
func presenceKey(user string) string { return "im:presence:" + user }

// 只有 key 仍指向本连接时才删除；新连接优先
const luaOfflineIfOwner = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var offlineScript = redis.NewScript(luaOfflineIfOwner)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisPresence 把内存注册表镜像到 redis，供没有 hub 的进程（REST、其他服务）查询在线状态
type RedisPresence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresence(ctx context.Context, c RedisConfig) (*RedisPresence, error) {
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.ErrStorage.WrapMsg("ping redis", "addr", c.Addr, "err", err)
	}
	return NewRedisPresenceClient(rdb, c.TTL), nil
}

func NewRedisPresenceClient(rdb *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisPresence{rdb: rdb, ttl: ttl}
}

// Online 记录 userID 在 connID 上在线并续期 TTL
func (p *RedisPresence) Online(ctx context.Context, userID, connID string) error {
	if err := p.rdb.Set(ctx, presenceKey(userID), connID, p.ttl).Err(); err != nil {
		return errs.ErrStorage.WrapMsg("presence online", "userId", userID, "err", err)
	}
	return nil
}

// Offline 仅当 userID 仍登记在 connID 上时删除
func (p *RedisPresence) Offline(ctx context.Context, userID, connID string) error {
	if err := offlineScript.Run(ctx, p.rdb, []string{presenceKey(userID)}, connID).Err(); err != nil {
		return errs.ErrStorage.WrapMsg("presence offline", "userId", userID, "err", err)
	}
	return nil
}

// Lookup 查询 userID 是否在线及所在连接
func (p *RedisPresence) Lookup(ctx context.Context, userID string) (connID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.ErrStorage.WrapMsg("presence lookup", "userId", userID, "err", err)
	}
	return val, true, nil
}

// Refresh 用新的 TTL 重写 snapshot（userID -> connID）中的每一项
func (p *RedisPresence) Refresh(ctx context.Context, snapshot map[string]string) error {
	if len(snapshot) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for user, conn := range snapshot {
		pipe.Set(ctx, presenceKey(user), conn, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.ErrStorage.WrapMsg("presence refresh", "err", err)
	}
	return nil
}

// Run 每隔 interval 刷新一次，直到 ctx 结束
func (p *RedisPresence) Run(ctx context.Context, snapshot func() map[string]string, every time.Duration) {
	if every <= 0 {
		every = p.ttl / 3
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.Refresh(ctx, snapshot()); err != nil && ctx.Err() == nil {
				logger.Warn("presence refresh failed", zap.Error(err))
			}
		}
	}
}

func (p *RedisPresence) Close() error {
	return p.rdb.Close()
}
