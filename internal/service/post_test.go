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

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository/mocks"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

func newPostService(postRepo *mocks.PostRepository, userRepo *memUserRepo, admins []string) *service.PostService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	auth := service.NewAuthService(userRepo, "test-secret", 24*time.Hour, admins, logger)
	return service.NewPostService(postRepo, userRepo, auth)
}

func TestPostService_Create_DisplayName(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		user      domain.User
		anonymous bool
		want      string
	}{
		{"anonymous post", domain.User{Email: "kim@kw.ac.kr", Nickname: "김학생"}, true, "익명"},
		{"nickname preferred", domain.User{Email: "kim@kw.ac.kr", Nickname: "김학생"}, false, "김학생"},
		{"email local part fallback", domain.User{Email: "park@kw.ac.kr"}, false, "park"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := newMemUserRepo()
			author := userRepo.put(tt.user)
			mockPostRepo := new(mocks.PostRepository)
			svc := newPostService(mockPostRepo, userRepo, nil)

			mockPostRepo.On("Create", ctx, mock.AnythingOfType("*domain.Post")).Return(nil).Once()

			post, err := svc.Create(ctx, author.ID, "  제목 ", " 본문  ", tt.anonymous)
			require.NoError(t, err)
			assert.Equal(t, tt.want, post.AuthorDisplay)
			assert.Equal(t, "제목", post.Title)
			assert.Equal(t, "본문", post.Body)
			assert.Equal(t, author.ID, post.AuthorUID)
			mockPostRepo.AssertExpectations(t)
		})
	}
}

func TestPostService_Update_AuthorOnly(t *testing.T) {
	ctx := context.Background()
	userRepo := newMemUserRepo()
	author := userRepo.put(domain.User{Email: "author@kw.ac.kr"})
	stranger := userRepo.put(domain.User{Email: "stranger@kw.ac.kr"})
	mockPostRepo := new(mocks.PostRepository)
	svc := newPostService(mockPostRepo, userRepo, nil)

	post := &domain.Post{ID: 10, AuthorUID: author.ID, Title: "old", Body: "old"}
	mockPostRepo.On("FindByID", ctx, uint(10)).Return(post, nil)

	// 非作者被拒绝，不触发写入
	_, err := svc.Update(ctx, stranger.ID, 10, strPtr("new"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrPermissionDenied))
	mockPostRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)

	// 作者本人可以修改，nil 字段保持不变
	mockPostRepo.On("Update", ctx, mock.AnythingOfType("*domain.Post")).Return(nil).Once()
	updated, err := svc.Update(ctx, author.ID, 10, strPtr(" new title "), nil)
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, "old", updated.Body)
	mockPostRepo.AssertExpectations(t)
}

func TestPostService_Delete_AdminOverride(t *testing.T) {
	ctx := context.Background()
	userRepo := newMemUserRepo()
	author := userRepo.put(domain.User{Email: "author@kw.ac.kr"})
	admin := userRepo.put(domain.User{Email: "admin@kw.ac.kr"})
	mockPostRepo := new(mocks.PostRepository)
	svc := newPostService(mockPostRepo, userRepo, []string{"admin@kw.ac.kr"})

	post := &domain.Post{ID: 11, AuthorUID: author.ID}
	mockPostRepo.On("FindByID", ctx, uint(11)).Return(post, nil).Once()
	mockPostRepo.On("Delete", ctx, uint(11)).Return(nil).Once()

	require.NoError(t, svc.Delete(ctx, admin.ID, 11))
	mockPostRepo.AssertExpectations(t)
}

func TestPostService_Delete_MissingPostIsSilent(t *testing.T) {
	ctx := context.Background()
	userRepo := newMemUserRepo()
	user := userRepo.put(domain.User{Email: "a@kw.ac.kr"})
	mockPostRepo := new(mocks.PostRepository)
	svc := newPostService(mockPostRepo, userRepo, nil)

	mockPostRepo.On("FindByID", ctx, uint(99)).Return(nil, repository.ErrPostNotFound).Once()

	assert.NoError(t, svc.Delete(ctx, user.ID, 99))
	mockPostRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestPostService_ToggleLike(t *testing.T) {
	ctx := context.Background()
	userRepo := newMemUserRepo()
	user := userRepo.put(domain.User{Email: "a@kw.ac.kr"})
	mockPostRepo := new(mocks.PostRepository)
	svc := newPostService(mockPostRepo, userRepo, nil)

	mockPostRepo.On("ToggleLike", ctx, uint(7), user.ID).Return(true, nil).Once()
	mockPostRepo.On("ToggleLike", ctx, uint(7), user.ID).Return(false, nil).Once()

	liked, err := svc.ToggleLike(ctx, user.ID, 7)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = svc.ToggleLike(ctx, user.ID, 7)
	require.NoError(t, err)
	assert.False(t, liked)
	mockPostRepo.AssertExpectations(t)
}
