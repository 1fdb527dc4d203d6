package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ActorRoleAdmin    = "admin"
	ActorRoleCustomer = "customer"
)

var ErrInvalidActorToken = errors.New("invalid actor token")

// ActorClaims 操作人令牌声明
type ActorClaims struct {
	ActorID uint   `json:"actor_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin 是否为管理端操作人
func (c *ActorClaims) IsAdmin() bool {
	return c != nil && c.Role == ActorRoleAdmin
}

// ActorTokenService 操作人令牌签发与校验
type ActorTokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewActorTokenService 创建令牌服务
func NewActorTokenService(secret string, expireHours int) *ActorTokenService {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &ActorTokenService{
		secret: []byte(secret),
		ttl:    time.Duration(expireHours) * time.Hour,
	}
}

// Generate 签发令牌
func (s *ActorTokenService) Generate(actorID uint, role string) (string, time.Time, error) {
	role = strings.TrimSpace(role)
	if actorID == 0 || (role != ActorRoleAdmin && role != ActorRoleCustomer) {
		return "", time.Time{}, ErrInvalidActorToken
	}
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := ActorClaims{
		ActorID: actorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse 校验并解析令牌
func (s *ActorTokenService) Parse(tokenString string) (*ActorClaims, error) {
	if len(s.secret) == 0 {
		return nil, ErrInvalidActorToken
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &ActorClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidActorToken, err)
	}
	if !token.Valid || claims.ActorID == 0 {
		return nil, ErrInvalidActorToken
	}
	return claims, nil
}
