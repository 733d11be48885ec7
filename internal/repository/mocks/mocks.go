// Package mocks 提供 repository 接口的 testify mock 实现，供单元测试使用。
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// UserRepository 是 repository.UserRepository 的 mock
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	var user *domain.User
	if v := args.Get(0); v != nil {
		user = v.(*domain.User)
	}
	return user, args.Error(1)
}

func (m *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	var user *domain.User
	if v := args.Get(0); v != nil {
		user = v.(*domain.User)
	}
	return user, args.Error(1)
}

func (m *UserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) SaveProfile(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) UpdatePassword(ctx context.Context, id uint, hashedPassword string) error {
	args := m.Called(ctx, id, hashedPassword)
	return args.Error(0)
}

func (m *UserRepository) UpdatePenaltyTx(ctx context.Context, id uint, mutate func(u *domain.User) error) (*domain.User, error) {
	args := m.Called(ctx, id, mutate)
	var user *domain.User
	if v := args.Get(0); v != nil {
		user = v.(*domain.User)
	}
	return user, args.Error(1)
}

// QueueRepository 是 repository.QueueRepository 的 mock
type QueueRepository struct {
	mock.Mock
}

func (m *QueueRepository) Create(ctx context.Context, entry *domain.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *QueueRepository) Get(ctx context.Context, id string) (*domain.QueueEntry, error) {
	args := m.Called(ctx, id)
	var entry *domain.QueueEntry
	if v := args.Get(0); v != nil {
		entry = v.(*domain.QueueEntry)
	}
	return entry, args.Error(1)
}

func (m *QueueRepository) FindByUID(ctx context.Context, uid uint) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, uid)
	var entries []domain.QueueEntry
	if v := args.Get(0); v != nil {
		entries = v.([]domain.QueueEntry)
	}
	return entries, args.Error(1)
}

func (m *QueueRepository) DeleteByUID(ctx context.Context, uid uint) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *QueueRepository) ListWaiting(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, limit)
	var entries []domain.QueueEntry
	if v := args.Get(0); v != nil {
		entries = v.([]domain.QueueEntry)
	}
	return entries, args.Error(1)
}

func (m *QueueRepository) UpdateTx(ctx context.Context, id string, mutate func(e *domain.QueueEntry) (bool, error)) (*domain.QueueEntry, error) {
	args := m.Called(ctx, id, mutate)
	var entry *domain.QueueEntry
	if v := args.Get(0); v != nil {
		entry = v.(*domain.QueueEntry)
	}
	return entry, args.Error(1)
}

func (m *QueueRepository) Subscribe(ctx context.Context, id string) (<-chan domain.QueueEntry, func(), error) {
	args := m.Called(ctx, id)
	var ch <-chan domain.QueueEntry
	if v := args.Get(0); v != nil {
		ch = v.(<-chan domain.QueueEntry)
	}
	var stop func()
	if v := args.Get(1); v != nil {
		stop = v.(func())
	}
	return ch, stop, args.Error(2)
}

func (m *QueueRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

// RoomRepository 是 repository.RoomRepository 的 mock
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	args := m.Called(ctx, id)
	var room *domain.Room
	if v := args.Get(0); v != nil {
		room = v.(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) CreateForMatch(ctx context.Context, room *domain.Room, myEntryID, oppEntryID string) error {
	args := m.Called(ctx, room, myEntryID, oppEntryID)
	return args.Error(0)
}

func (m *RoomRepository) UpdateTx(ctx context.Context, id string, mutate func(r *domain.Room) (bool, error)) (*domain.Room, error) {
	args := m.Called(ctx, id, mutate)
	var room *domain.Room
	if v := args.Get(0); v != nil {
		room = v.(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) Subscribe(ctx context.Context, id string) (<-chan domain.Room, func(), error) {
	args := m.Called(ctx, id)
	var ch <-chan domain.Room
	if v := args.Get(0); v != nil {
		ch = v.(<-chan domain.Room)
	}
	var stop func()
	if v := args.Get(1); v != nil {
		stop = v.(func())
	}
	return ch, stop, args.Error(2)
}

func (m *RoomRepository) PublishMessage(ctx context.Context, roomID string, msg domain.Message) error {
	args := m.Called(ctx, roomID, msg)
	return args.Error(0)
}

func (m *RoomRepository) SubscribeMessages(ctx context.Context, roomID string) (<-chan domain.Message, func(), error) {
	args := m.Called(ctx, roomID)
	var ch <-chan domain.Message
	if v := args.Get(0); v != nil {
		ch = v.(<-chan domain.Message)
	}
	var stop func()
	if v := args.Get(1); v != nil {
		stop = v.(func())
	}
	return ch, stop, args.Error(2)
}

func (m *RoomRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, cutoff, limit)
	var ids []string
	if v := args.Get(0); v != nil {
		ids = v.([]string)
	}
	return ids, args.Error(1)
}

func (m *RoomRepository) RemoveFromIndex(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MessageRepository 是 repository.MessageRepository 的 mock
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) SaveBatch(ctx context.Context, msgs []domain.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MessageRepository) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []domain.Message
	if v := args.Get(0); v != nil {
		msgs = v.([]domain.Message)
	}
	return msgs, args.Error(1)
}

// PostRepository 是 repository.PostRepository 的 mock
type PostRepository struct {
	mock.Mock
}

func (m *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *PostRepository) FindByID(ctx context.Context, id uint) (*domain.Post, error) {
	args := m.Called(ctx, id)
	var post *domain.Post
	if v := args.Get(0); v != nil {
		post = v.(*domain.Post)
	}
	return post, args.Error(1)
}

func (m *PostRepository) List(ctx context.Context, limit int) ([]domain.Post, error) {
	args := m.Called(ctx, limit)
	var posts []domain.Post
	if v := args.Get(0); v != nil {
		posts = v.([]domain.Post)
	}
	return posts, args.Error(1)
}

func (m *PostRepository) Update(ctx context.Context, post *domain.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *PostRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *PostRepository) LikeCount(ctx context.Context, postID uint) (int64, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PostRepository) ToggleLike(ctx context.Context, postID, uid uint) (bool, error) {
	args := m.Called(ctx, postID, uid)
	return args.Bool(0), args.Error(1)
}

// PresenceRepository 是 repository.PresenceRepository 的 mock
type PresenceRepository struct {
	mock.Mock
}

func (m *PresenceRepository) Heartbeat(ctx context.Context, uid uint, at time.Time) error {
	args := m.Called(ctx, uid, at)
	return args.Error(0)
}

func (m *PresenceRepository) LastActive(ctx context.Context, uid uint) (time.Time, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(time.Time), args.Error(1)
}
