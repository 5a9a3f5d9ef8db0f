package service

import (
	"errors"
	"tokengate_backend/internal/config"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/repository"
	"tokengate_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

// WalletLogin 钱包连接后的会话登录。签名校验由身份提供方完成，
// 这里只消费稳定的钱包地址：首次出现即注册为学员。
func (s *AuthService) WalletLogin(wallet, name string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByWallet(wallet)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &model.User{
			WalletAddress: wallet,
			Name:          name,
			Role:          model.Learner,
		}
		if err := s.UserRepo.Create(user); err != nil {
			return "", nil, err
		}
	} else if err != nil {
		return "", nil, err
	}

	if user.Disabled {
		return "", nil, util.ErrPermissionDenied
	}

	s.UserRepo.UpdateLastLogin(user.ID)

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// AdminLogin 管理面板的邮箱密码登录
func (s *AuthService) AdminLogin(email, password string) (string, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		return "", errors.New("invalid credentials")
	}
	if user.Role != model.Admin {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	return util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, _ := s.UserRepo.FindByID(claims.UserID)
	return user
}
