package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

// 只允许校内邮箱注册
var kwEmailPattern = regexp.MustCompile(`(?i)^[^@\s]+@kw\.ac\.kr$`)

const minPasswordLen = 8

// AuthService 处理用户认证相关的业务逻辑
type AuthService struct {
	userRepo    repository.UserRepository
	jwtSecret   []byte
	tokenExpiry time.Duration
	adminEmails map[string]bool
	logger      *logrus.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenExpiry time.Duration, adminEmails []string, logger *logrus.Logger) *AuthService {
	if userRepo == nil {
		panic("userRepo cannot be nil for AuthService")
	}
	if jwtSecret == "" {
		panic("jwtSecret cannot be empty for AuthService")
	}
	if tokenExpiry <= 0 {
		tokenExpiry = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins[e] = true
		}
	}
	return &AuthService{
		userRepo:    userRepo,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
		adminEmails: admins,
		logger:      logger,
	}
}

// Register 注册一个新用户并返回登录令牌。
// 仅接受 @kw.ac.kr 邮箱，密码至少 8 位。
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !kwEmailPattern.MatchString(email) {
		return nil, "", fmt.Errorf("%w: only @kw.ac.kr email addresses are allowed", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user := &domain.User{
		Email:      email,
		Password:   string(hashed),
		HonbapTemp: domain.DefaultHonbapTemp,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, "", ErrRegistrationFailed
		}
		return nil, "", fmt.Errorf("failed to save user: %w", err)
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "email": email}).Info("User registered")
	user.Password = ""
	return user, token, nil
}

// Login 校验邮箱和密码，成功时返回 JWT
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrAuthenticationFailed
		}
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if user.Password == "" {
		return "", ErrAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrAuthenticationFailed
	}
	return s.generateJWT(user)
}

// LoginAnonymous 创建一个匿名用户并返回其令牌。
// 匿名用户没有密码，之后可通过 SetPassword 升级为正式账号。
func (s *AuthService) LoginAnonymous(ctx context.Context) (*domain.User, string, error) {
	user := &domain.User{
		Email:       fmt.Sprintf("anon-%s@anonymous.local", uuid.New().String()[:8]),
		IsAnonymous: true,
		HonbapTemp:  domain.DefaultHonbapTemp,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create anonymous user: %w", err)
	}
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.WithField("user_id", user.ID).Info("Anonymous user created")
	return user, token, nil
}

// SetPassword 为当前用户设置（或重置）密码
func (s *AuthService) SetPassword(ctx context.Context, uid uint, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if _, err := s.userRepo.FindByID(ctx, uid); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user %d: %w", uid, err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	// 只写密码列，避免覆盖并发写入的其他字段
	if err := s.userRepo.UpdatePassword(ctx, uid, string(hashed)); err != nil {
		return fmt.Errorf("failed to save password for user %d: %w", uid, err)
	}
	return nil
}

// IsAdminEmail 报告该邮箱是否在管理员名单中
func (s *AuthService) IsAdminEmail(email string) bool {
	return s.adminEmails[strings.ToLower(strings.TrimSpace(email))]
}

func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.tokenExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
