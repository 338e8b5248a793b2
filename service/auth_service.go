package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// 默认 token 过期时间
	defaultTokenTTL = 7 * 24 * time.Hour
)

// AuthService 提供"鉴权核心能力"，供调用方自建中间件/拦截器使用。
// Redis Key 设计：
// - live:token:{token} -> userID (String, TTL)
// - live:user_tokens:{userID} -> Set(token1, token2, ...) (Set, 可选 TTL)
//
// 这样可以：
// - 单 token 注销：DEL tokenKey + SREM userSet
// - 全端注销：SMEMBERS userSet 再批量 DEL tokenKey
// - 支持多端登录/多 token
type AuthService struct {
	rdb *redis.Client
}

func NewAuthService(rdb *redis.Client) *AuthService {
	return &AuthService{rdb: rdb}
}

func (a *AuthService) ensure() error {
	if a == nil || a.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	return nil
}

func (a *AuthService) tokenKey(token string) string {
	return "live:token:" + token
}

func (a *AuthService) userTokensKey(userID uint64) string {
	return fmt.Sprintf("live:user_tokens:%d", userID)
}

// GenerateToken 生成一个随机 token（不包含任何用户信息）。
func (a *AuthService) GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Login 签发一个新 token 并落到 Redis。
func (a *AuthService) Login(ctx context.Context, userID uint64, ttl time.Duration) (string, error) {
	if err := a.ensure(); err != nil {
		return "", err
	}
	token, err := a.GenerateToken()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	pipe := a.rdb.TxPipeline()
	pipe.Set(ctx, a.tokenKey(token), strconv.FormatUint(userID, 10), ttl)
	pipe.SAdd(ctx, a.userTokensKey(userID), token)
	// user token set 的 TTL 不是必须；设置为略大于 token TTL，方便自动清理
	pipe.Expire(ctx, a.userTokensKey(userID), ttl+24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// ExtractToken 从 HTTP 请求中提取 token：优先 Authorization: Bearer，其次 query: token。
func (a *AuthService) ExtractToken(r *http.Request) string {
	if r == nil {
		return ""
	}

	// Authorization: Bearer <token>
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah != "" {
		parts := strings.SplitN(ah, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// query: ?token=xxx
	q := r.URL.Query().Get("token")
	return strings.TrimSpace(q)
}

// Authenticate 根据 token 获取 userID。
func (a *AuthService) Authenticate(ctx context.Context, token string) (uint64, error) {
	if err := a.ensure(); err != nil {
		return 0, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("missing token")
	}
	val, err := a.rdb.Get(ctx, a.tokenKey(token)).Result()
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(val, 10, 64)
}

// AuthenticateRequest 从请求里抽 token 并鉴权。
func (a *AuthService) AuthenticateRequest(ctx context.Context, r *http.Request) (uint64, string, error) {
	t := a.ExtractToken(r)
	uid, err := a.Authenticate(ctx, t)
	return uid, t, err
}

// RevokeToken 注销单个 token。
func (a *AuthService) RevokeToken(ctx context.Context, token string) error {
	if err := a.ensure(); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if uid, err := a.Authenticate(ctx, token); err == nil {
		_ = a.rdb.SRem(ctx, a.userTokensKey(uid), token).Err()
	}
	return a.rdb.Del(ctx, a.tokenKey(token)).Err()
}

// RevokeAllTokensByUser 注销用户全部 token。
func (a *AuthService) RevokeAllTokensByUser(ctx context.Context, userID uint64) error {
	if err := a.ensure(); err != nil {
		return err
	}
	tokens, err := a.rdb.SMembers(ctx, a.userTokensKey(userID)).Result()
	if err != nil {
		// 如果 set 不存在，视为没有 token
		if err == redis.Nil {
			return nil
		}
		return err
	}
	pipe := a.rdb.TxPipeline()
	for _, t := range tokens {
		pipe.Del(ctx, a.tokenKey(t))
	}
	pipe.Del(ctx, a.userTokensKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

// RefreshTokenTTL 对 token 续期（滑动过期用）。
func (a *AuthService) RefreshTokenTTL(ctx context.Context, token string, ttl time.Duration) error {
	if err := a.ensure(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	uid, err := a.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	pipe := a.rdb.TxPipeline()
	pipe.Expire(ctx, a.tokenKey(token), ttl)
	pipe.Expire(ctx, a.userTokensKey(uid), ttl+24*time.Hour)
	_, err = pipe.Exec(ctx)
	return err
}
