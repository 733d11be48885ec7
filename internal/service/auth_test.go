package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository/mocks"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

func newAuthService(userRepo *mocks.UserRepository, admins []string) *service.AuthService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return service.NewAuthService(userRepo, "test-secret", 24*time.Hour, admins, logger)
}

func TestAuthService_Register_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()
	email := "student@kw.ac.kr"
	password := "StrongPass123"

	// MatchedBy 必须无副作用：AssertExpectations 会用同一指针重新求值匹配器，
	// 而 Register 在 Save 之后会清空该指针上的 Password，所以在 Run 里拷贝后再断言。
	var savedUser domain.User
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		return user.Email == email
	})).
		Run(func(args mock.Arguments) {
			savedUser = *args.Get(1).(*domain.User)
			args.Get(1).(*domain.User).ID = 5
		}).
		Return(nil).
		Once()

	user, token, err := authService.Register(ctx, email, password)

	assert.NoError(t, err)
	assert.Equal(t, email, savedUser.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(savedUser.Password), []byte(password)), "密码应被正确哈希")
	assert.Equal(t, domain.DefaultHonbapTemp, savedUser.HonbapTemp)
	require.NotNil(t, user)
	assert.Equal(t, uint(5), user.ID)
	assert.Empty(t, user.Password, "返回的用户密码应为空")
	assert.NotEmpty(t, token)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_RejectsForeignDomain(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)

	_, _, err := authService.Register(context.Background(), "someone@gmail.com", "StrongPass123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation), "非校内邮箱应返回 ErrValidation")
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_RejectsShortPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)

	_, _, err := authService.Register(context.Background(), "student@kw.ac.kr", "short")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()

	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(repository.ErrDuplicateEntry).Once()

	_, _, err := authService.Register(ctx, "dup@kw.ac.kr", "StrongPass123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()
	password := "password123"
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	userInDb := &domain.User{ID: 1, Email: "student@kw.ac.kr", Password: string(hashed)}

	mockUserRepo.On("FindByEmail", ctx, "student@kw.ac.kr").Return(userInDb, nil).Once()

	token, err := authService.Login(ctx, "Student@kw.ac.kr", password)

	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_IncorrectPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	userInDb := &domain.User{ID: 1, Email: "student@kw.ac.kr", Password: string(hashed)}

	mockUserRepo.On("FindByEmail", ctx, "student@kw.ac.kr").Return(userInDb, nil).Once()

	token, err := authService.Login(ctx, "student@kw.ac.kr", "wrong-password")

	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()

	mockUserRepo.On("FindByEmail", ctx, "nobody@kw.ac.kr").Return(nil, repository.ErrUserNotFound).Once()

	_, err := authService.Login(ctx, "nobody@kw.ac.kr", "password")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_AnonymousUserHasNoPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()
	anon := &domain.User{ID: 7, Email: "anon-1234@anonymous.local", IsAnonymous: true}

	mockUserRepo.On("FindByEmail", ctx, anon.Email).Return(anon, nil).Once()

	// 匿名账号没有密码，不能走密码登录
	_, err := authService.Login(ctx, anon.Email, "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
}

func TestAuthService_LoginAnonymous(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()

	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		return user.IsAnonymous && user.Password == ""
	})).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 42
		}).
		Return(nil).
		Once()

	user, token, err := authService.LoginAnonymous(ctx)

	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, uint(42), user.ID)
	assert.True(t, user.IsAnonymous)
	assert.NotEmpty(t, token)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_SetPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService := newAuthService(mockUserRepo, nil)
	ctx := context.Background()
	user := &domain.User{ID: 3, Email: "anon-x@anonymous.local", IsAnonymous: true}

	mockUserRepo.On("FindByID", ctx, uint(3)).Return(user, nil).Once()
	// 只更新密码列，不整行覆盖
	mockUserRepo.On("UpdatePassword", ctx, uint(3), mock.MatchedBy(func(hashed string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte("NewPassword1")) == nil
	})).Return(nil).Once()

	require.NoError(t, authService.SetPassword(ctx, 3, "NewPassword1"))
	mockUserRepo.AssertExpectations(t)

	// 弱密码被拒绝
	err := authService.SetPassword(ctx, 3, "short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
}

func TestAuthService_IsAdminEmail(t *testing.T) {
	authService := newAuthService(new(mocks.UserRepository), []string{"Admin@kw.ac.kr", " ops@kw.ac.kr "})

	assert.True(t, authService.IsAdminEmail("admin@kw.ac.kr"))
	assert.True(t, authService.IsAdminEmail("OPS@kw.ac.kr"))
	assert.False(t, authService.IsAdminEmail("student@kw.ac.kr"))
}
