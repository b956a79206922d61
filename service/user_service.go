package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/LinkesAuge/clanmsg-sdk/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService 账号引导：注册/登录，签发 redis token。
// 消息核心把鉴权当外部协作者；这里是默认实现，宿主应用可以换掉。
type UserService struct {
	*Service
	tokenService  *TokenService
	loginTokenTTL time.Duration
}

func NewUserService(s *Service, token *TokenService) *UserService {
	log.Println("NewUserService")
	return &UserService{
		Service:       s,
		tokenService:  token,
		loginTokenTTL: 7 * 24 * time.Hour,
	}
}

// --- types ---

type UserDTO struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar"`
	Role      string    `json:"role"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterReq struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResp struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

func toUserDTO(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		Role:      u.Role,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Register 注册新用户
func (s *UserService) Register(req RegisterReq) (*UserDTO, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, validationError("username and password are required")
	}
	if len(req.Password) < 6 {
		return nil, validationError("password must be at least 6 characters")
	}

	var count int64
	if err := s.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, validationError("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		nickname = username
	}
	user := &models.User{
		Username: username,
		Nickname: nickname,
		Email:    strings.TrimSpace(req.Email),
		Password: string(hash),
		Role:     models.RoleMember,
	}
	if err := s.DB.Create(user).Error; err != nil {
		return nil, err
	}
	return toUserDTO(user), nil
}

// Login 校验密码并签发 token
func (s *UserService) Login(ctx context.Context, req LoginReq) (*LoginResp, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, validationError("username and password are required")
	}

	var user models.User
	err := s.DB.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, ErrForbidden
	}

	token, err := s.tokenService.GenerateToken()
	if err != nil {
		return nil, err
	}
	if err := s.tokenService.StoreToken(ctx, token, user.ID, s.loginTokenTTL); err != nil {
		return nil, err
	}
	return &LoginResp{Token: token, User: *toUserDTO(&user)}, nil
}

// GetUser 读取用户资料
func (s *UserService) GetUser(userID uint64) (*UserDTO, error) {
	var user models.User
	err := s.DB.First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toUserDTO(&user), nil
}
