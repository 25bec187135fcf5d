package auth

import (
	"context"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ecofinds/marketplace/cmd/config"
	"github.com/ecofinds/marketplace/constant"
	redisrepo "github.com/ecofinds/marketplace/repository/redis"
	userrepo "github.com/ecofinds/marketplace/repository/user"
	"github.com/ecofinds/marketplace/utils/errors"
	"github.com/ecofinds/marketplace/utils/logger"
)

// AuthApp resolves bearer tokens issued by the identity service to user ids.
type AuthApp interface {
	ValidateToken(ctx context.Context, tokenString string) (uint64, error)
}

type authAppImpl struct {
	config    *config.Config
	userRepo  userrepo.UserRepository
	redisRepo redisrepo.Repository
}

func NewAuthApp(config *config.Config, userRepo userrepo.UserRepository, redisRepo redisrepo.Repository) AuthApp {
	return &authAppImpl{
		config:    config,
		userRepo:  userRepo,
		redisRepo: redisRepo,
	}
}

// ValidateToken accepts an HS256 token whose subject is the user id and whose
// jti names a live session for that same user.
func (s *authAppImpl) ValidateToken(ctx context.Context, tokenString string) (uint64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, errors.Wrap(constant.ErrUnauthorize, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return 0, errors.SetCustomError(constant.ErrUnauthorize)
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, errors.SetCustomError(constant.ErrUnauthorize)
	}
	if claims.ID == "" {
		return 0, errors.SetCustomError(constant.ErrUnauthorize)
	}

	sessionUserID, err := s.redisRepo.GetSession(ctx, claims.ID)
	if err != nil {
		logger.FromContext(ctx).Debug("[ValidateToken] session lookup", zap.String("error", err.Error()))
		return 0, errors.Wrap(constant.ErrUnauthorize, err)
	}
	if sessionUserID != userID {
		return 0, errors.SetCustomError(constant.ErrUnauthorize)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("[ValidateToken] error userRepo.GetByID", zap.String("error", err.Error()))
		return 0, errors.Wrap(constant.ErrInternal, err)
	}
	if user == nil || !user.IsActive {
		return 0, errors.SetCustomError(constant.ErrUnauthorize)
	}

	return userID, nil
}
