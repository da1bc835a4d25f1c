package security

import (
	"fmt"
	"strings"
	"time"

	"PPChat/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Options 签名算法与 token 有效期
type Options struct {
	Secret []byte        // HMAC 密钥，来自环境变量或配置
	Alg    string        // HS256/HS384/HS512，默认 HS256
	TTL    time.Duration // 默认 24h
	Issuer string
}

type Claims struct {
	jwtlib.RegisteredClaims
	Username string `json:"username,omitempty"`
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 24 * time.Hour, Issuer: "ppchat"}
}

// Generate 签发 subject 为 userID 的 token
func Generate(opts Options, userID, username string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if len(opts.Secret) == 0 {
		return "", time.Time{}, errs.ErrArgs.WrapMsg("empty jwt secret")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			Issuer:    opts.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
		Username: username,
	}
	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, errs.Wrap(err)
	}
	return signed, exp, nil
}

// Verify 解析 token 并返回 claims，只接受 HMAC 系列算法
func Verify(opts Options, token string) (*Claims, error) {
	if _, err := signingMethod(opts.Alg); err != nil {
		return nil, err
	}
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return nil, errs.ErrIdentityMismatch.WrapMsg(err.Error())
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errs.ErrIdentityMismatch.WrapMsg("invalid token")
	}
	return claims, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, errs.ErrArgs.WrapMsg("unsupported alg", "alg", alg)
	}
}
