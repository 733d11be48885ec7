package service_test

// 本文件提供按存储语义线性化的内存版仓库实现，
// 用于在不依赖 MySQL/Redis 的情况下测试事务性业务逻辑。
// 简单的调用验证场景使用 mocks 包，这里覆盖需要真实读-改-写
// 语义的场景（惩罚记账、匹配、房间状态机）。

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

// --- memUserRepo ---

type memUserRepo struct {
	mu     sync.Mutex
	users  map[uint]*domain.User
	nextID uint
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uint]*domain.User), nextID: 1}
}

func (r *memUserRepo) put(u domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	} else if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	cp := u
	r.users[u.ID] = &cp
	return &u
}

func (r *memUserRepo) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) Save(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email && u.ID != user.ID {
			return repository.ErrDuplicateEntry
		}
	}
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) SaveProfile(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	// 与列选择更新一致：只合并资料列
	u.Nickname = user.Nickname
	u.Content = user.Content
	u.Year = user.Year
	u.Age = user.Age
	u.Gender = user.Gender
	u.Major = user.Major
	u.MBTI = user.MBTI
	u.FreeText = user.FreeText
	u.IsBot = user.IsBot
	return nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, id uint, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Password = hashedPassword
	return nil
}

func (r *memUserRepo) UpdatePenaltyTx(ctx context.Context, id uint, mutate func(u *domain.User) error) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	r.users[id] = &cp
	out := cp
	return &out, nil
}

// --- memQueueRepo ---

type memQueueRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.QueueEntry
	indexed map[string]bool // 扫描索引中的条目，匹配成功后移出
	subs    map[string][]chan domain.QueueEntry
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{
		entries: make(map[string]*domain.QueueEntry),
		indexed: make(map[string]bool),
		subs:    make(map[string][]chan domain.QueueEntry),
	}
}

func (r *memQueueRepo) publishLocked(e *domain.QueueEntry) {
	for _, ch := range r.subs[e.ID] {
		select {
		case ch <- *e:
		default:
		}
	}
}

func (r *memQueueRepo) Create(ctx context.Context, entry *domain.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries[entry.ID] = &cp
	r.indexed[entry.ID] = true
	return nil
}

func (r *memQueueRepo) Get(ctx context.Context, id string) (*domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, repository.ErrQueueEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memQueueRepo) FindByUID(ctx context.Context, uid uint) ([]domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QueueEntry
	for _, e := range r.entries {
		if e.UID == uid {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memQueueRepo) DeleteByUID(ctx context.Context, uid uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.UID == uid {
			delete(r.entries, id)
			delete(r.indexed, id)
		}
	}
	return nil
}

// ListWaiting 模拟真实实现的窗口语义：先按入队时间取出索引中最老的
// limit 个条目，再过滤出仍在等待的。
func (r *memQueueRepo) ListWaiting(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var window []domain.QueueEntry
	for id := range r.indexed {
		if e, ok := r.entries[id]; ok {
			window = append(window, *e)
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i].CreatedAt.Before(window[j].CreatedAt) })
	if limit > 0 && len(window) > limit {
		window = window[:limit]
	}
	var out []domain.QueueEntry
	for _, e := range window {
		if e.Status == domain.QueueStatusWaiting {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memQueueRepo) UpdateTx(ctx context.Context, id string, mutate func(e *domain.QueueEntry) (bool, error)) (*domain.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, repository.ErrQueueEntryNotFound
	}
	cp := *e
	write, err := mutate(&cp)
	if err != nil {
		return nil, err
	}
	if write {
		r.entries[id] = &cp
		r.publishLocked(&cp)
	}
	out := cp
	return &out, nil
}

func (r *memQueueRepo) Subscribe(ctx context.Context, id string) (<-chan domain.QueueEntry, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan domain.QueueEntry, 16)
	r.subs[id] = append(r.subs[id], ch)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			list := r.subs[id]
			for i, c := range list {
				if c == ch {
					r.subs[id] = append(list[:i], list[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, stop, nil
}

func (r *memQueueRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.LastActive.Before(cutoff) {
			delete(r.entries, id)
			delete(r.indexed, id)
			n++
		}
	}
	return n, nil
}

// --- memRoomRepo ---

// memRoomRepo 与 memQueueRepo 共享一把锁的语义由 CreateForMatch
// 内部直接持有 queue 的互斥锁来模拟多键事务。
type memRoomRepo struct {
	mu        sync.Mutex
	rooms     map[string]*domain.Room
	queue     *memQueueRepo
	subs      map[string][]chan domain.Room
	msgSubs   map[string][]chan domain.Message
	published []domain.Message
	index     map[string]bool
}

func newMemRoomRepo(queue *memQueueRepo) *memRoomRepo {
	return &memRoomRepo{
		rooms:   make(map[string]*domain.Room),
		queue:   queue,
		subs:    make(map[string][]chan domain.Room),
		msgSubs: make(map[string][]chan domain.Message),
		index:   make(map[string]bool),
	}
}

func (r *memRoomRepo) publishLocked(room *domain.Room) {
	for _, ch := range r.subs[room.ID] {
		select {
		case ch <- *room:
		default:
		}
	}
}

func (r *memRoomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *room
	r.rooms[room.ID] = &cp
	r.index[room.ID] = true
	r.publishLocked(&cp)
	return nil
}

func (r *memRoomRepo) Get(ctx context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *memRoomRepo) CreateForMatch(ctx context.Context, room *domain.Room, myEntryID, oppEntryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()

	for _, entryID := range []string{myEntryID, oppEntryID} {
		e, ok := r.queue.entries[entryID]
		if !ok || e.Status != domain.QueueStatusWaiting {
			return repository.ErrPreconditionFailed
		}
	}

	cp := *room
	r.rooms[room.ID] = &cp
	r.index[room.ID] = true
	for _, entryID := range []string{myEntryID, oppEntryID} {
		e := r.queue.entries[entryID]
		e.Status = domain.QueueStatusMatched
		e.RoomID = room.ID
		delete(r.queue.indexed, entryID) // 匹配成功即移出扫描索引
		r.queue.publishLocked(e)
	}
	r.publishLocked(&cp)
	return nil
}

func (r *memRoomRepo) UpdateTx(ctx context.Context, id string, mutate func(room *domain.Room) (bool, error)) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	cp := *room
	cp.Members = append([]uint(nil), room.Members...)
	cp.ExpectedMembers = append([]uint(nil), room.ExpectedMembers...)
	cp.StartVoted = append([]uint(nil), room.StartVoted...)
	cp.StartYes = append([]uint(nil), room.StartYes...)
	if room.Invite != nil {
		inv := *room.Invite
		cp.Invite = &inv
	}
	write, err := mutate(&cp)
	if err != nil {
		return nil, err
	}
	if write {
		r.rooms[id] = &cp
		r.publishLocked(&cp)
	}
	out := cp
	return &out, nil
}

func (r *memRoomRepo) Subscribe(ctx context.Context, id string) (<-chan domain.Room, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan domain.Room, 16)
	r.subs[id] = append(r.subs[id], ch)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			list := r.subs[id]
			for i, c := range list {
				if c == ch {
					r.subs[id] = append(list[:i], list[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, stop, nil
}

func (r *memRoomRepo) PublishMessage(ctx context.Context, roomID string, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, msg)
	for _, ch := range r.msgSubs[roomID] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (r *memRoomRepo) SubscribeMessages(ctx context.Context, roomID string) (<-chan domain.Message, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan domain.Message, 16)
	r.msgSubs[roomID] = append(r.msgSubs[roomID], ch)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			list := r.msgSubs[roomID]
			for i, c := range list {
				if c == ch {
					r.msgSubs[roomID] = append(list[:i], list[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, stop, nil
}

func (r *memRoomRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id := range r.index {
		if room, ok := r.rooms[id]; ok && room.CreatedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRoomRepo) RemoveFromIndex(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.index, id)
	return nil
}

// --- memMessageRepo ---

type memMessageRepo struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (r *memMessageRepo) SaveBatch(ctx context.Context, msgs []domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *memMessageRepo) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// --- fakeTaskClient ---

type fakeTaskClient struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (c *fakeTaskClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func (c *fakeTaskClient) taskTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t.Type())
	}
	return out
}
