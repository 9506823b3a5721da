package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/infrastructure/metrics"
	"github.com/taskmaster/gtd/internal/ports"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory ports.Store. Transactions are not isolated; the
// tests only need to see that work happens inside WithinTx.
type memStore struct {
	mu sync.Mutex

	nextID      int64
	users       map[uuid.UUID]*entities.User
	tasks       map[int64]*entities.Task
	owners      map[int64]map[uuid.UUID]bool
	contexts    map[int64]*entities.UserTaskContext
	hashtags    map[int64][]string
	timeSlots   map[int64]*entities.TimeSlot
	jobSearches map[int64]*entities.JobSearch
	itemOwners  map[string]uuid.UUID
	ads         []*entities.Advertising
	activities  []*entities.Activity

	txCalls          int
	subtaskViewLoads int
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*entities.User),
		tasks:       make(map[int64]*entities.Task),
		owners:      make(map[int64]map[uuid.UUID]bool),
		contexts:    make(map[int64]*entities.UserTaskContext),
		hashtags:    make(map[int64][]string),
		timeSlots:   make(map[int64]*entities.TimeSlot),
		jobSearches: make(map[int64]*entities.JobSearch),
		itemOwners:  make(map[string]uuid.UUID),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Users() ports.UserRepository              { return memUsers{s} }
func (s *memStore) Tasks() ports.TaskRepository              { return memTasks{s} }
func (s *memStore) Contexts() ports.TaskContextRepository    { return memContexts{s} }
func (s *memStore) TimeSlots() ports.TimeSlotRepository      { return memTimeSlots{s} }
func (s *memStore) JobSearches() ports.JobSearchRepository   { return memJobSearches{s} }
func (s *memStore) Advertising() ports.AdvertisingRepository { return memAdvertising{s} }
func (s *memStore) Activities() ports.ActivityRepository     { return memActivities{s} }

func (s *memStore) WithinTx(_ context.Context, fn func(ports.Repositories) error) error {
	s.mu.Lock()
	s.txCalls++
	s.mu.Unlock()
	return fn(s)
}

// fixtures

func (s *memStore) addUser() uuid.UUID {
	id := uuid.New()
	s.users[id] = &entities.User{ID: id, Email: id.String() + "@example.com", Username: id.String()[:8], IsActive: true}
	return id
}

func (s *memStore) addTask(slug string, parent *entities.Task) *entities.Task {
	t := &entities.Task{
		ID:           s.id(),
		Slug:         slug,
		Title:        slug,
		TaskMode:     entities.TaskModeDraft,
		CardTemplate: entities.CardTemplateTask,
		CreatedAt:    baseTime.Add(time.Duration(s.nextID) * time.Minute),
	}
	if parent != nil {
		t.ParentID = &parent.ID
	}
	s.tasks[t.ID] = t
	return t
}

func (s *memStore) addOwner(task *entities.Task, userID uuid.UUID) {
	if s.owners[task.ID] == nil {
		s.owners[task.ID] = make(map[uuid.UUID]bool)
	}
	s.owners[task.ID][userID] = true
	if task.CreatorID == nil {
		uid := userID
		task.CreatorID = &uid
	}
}

func (s *memStore) addContext(task *entities.Task, userID uuid.UUID, category entities.Category, role entities.ContextRole) *entities.UserTaskContext {
	tc := &entities.UserTaskContext{
		ID:        s.id(),
		UserID:    userID,
		TaskID:    task.ID,
		Category:  category,
		Role:      role,
		IsVisible: true,
	}
	s.contexts[tc.ID] = tc
	return tc
}

func (s *memStore) contextOf(userID uuid.UUID, taskID int64) *entities.UserTaskContext {
	for _, tc := range s.contexts {
		if tc.UserID == userID && tc.TaskID == taskID {
			return tc
		}
	}
	return nil
}

func (s *memStore) deleteTask(id int64) {
	for _, child := range s.tasks {
		if child.ParentID != nil && *child.ParentID == id {
			s.deleteTask(child.ID)
		}
	}
	delete(s.tasks, id)
	delete(s.owners, id)
	delete(s.hashtags, id)
	for cid, tc := range s.contexts {
		if tc.TaskID == id {
			delete(s.contexts, cid)
		}
	}
}

// users

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, user *entities.User) error {
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return entities.ErrUserAlreadyExists
		}
	}
	user.CreatedAt, user.UpdatedAt = baseTime, baseTime
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

func (r memUsers) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.users[id]; !ok {
		return entities.ErrUserNotFound
	}
	delete(r.s.users, id)
	for taskID, owners := range r.s.owners {
		delete(owners, id)
		if len(owners) == 0 {
			delete(r.s.owners, taskID)
		}
	}
	for cid, tc := range r.s.contexts {
		if tc.UserID == id {
			delete(r.s.contexts, cid)
		}
	}
	return nil
}

// tasks

type memTasks struct{ s *memStore }

func (r memTasks) Create(_ context.Context, task *entities.Task) error {
	task.ID = r.s.id()
	task.CreatedAt = baseTime.Add(time.Duration(task.ID) * time.Minute)
	task.UpdatedAt = task.CreatedAt
	cp := *task
	r.s.tasks[task.ID] = &cp
	return nil
}

func (r memTasks) GetByID(_ context.Context, id int64) (*entities.Task, error) {
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTasks) GetBySlug(_ context.Context, slug string) (*entities.Task, error) {
	for _, t := range r.s.tasks {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, entities.ErrTaskNotFound
}

func (r memTasks) Update(_ context.Context, task *entities.Task) error {
	if _, ok := r.s.tasks[task.ID]; !ok {
		return entities.ErrTaskNotFound
	}
	cp := *task
	r.s.tasks[task.ID] = &cp
	return nil
}

func (r memTasks) SetAgenda(_ context.Context, id int64, isAgenda bool) error {
	t, ok := r.s.tasks[id]
	if !ok {
		return entities.ErrTaskNotFound
	}
	t.IsAgenda = isAgenda
	return nil
}

func (r memTasks) SaveCreator(_ context.Context, task *entities.Task) error {
	t, ok := r.s.tasks[task.ID]
	if !ok {
		return entities.ErrTaskNotFound
	}
	t.CreatorID = task.CreatorID
	t.CreatorDeleted = task.CreatorDeleted
	t.CreatorDisplayName = task.CreatorDisplayName
	return nil
}

func (r memTasks) Delete(_ context.Context, id int64) error {
	if _, ok := r.s.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	r.s.deleteTask(id)
	return nil
}

func (r memTasks) AddOwner(_ context.Context, taskID int64, userID uuid.UUID) error {
	if r.s.owners[taskID] == nil {
		r.s.owners[taskID] = make(map[uuid.UUID]bool)
	}
	r.s.owners[taskID][userID] = true
	return nil
}

func (r memTasks) IsOwner(_ context.Context, taskID int64, userID uuid.UUID) (bool, error) {
	return r.s.owners[taskID][userID], nil
}

func (r memTasks) SetHashtags(_ context.Context, taskID int64, tags []string) error {
	r.s.hashtags[taskID] = append([]string(nil), tags...)
	return nil
}

func (r memTasks) ListHashtags(_ context.Context, taskIDs []int64) (map[int64][]entities.Hashtag, error) {
	out := make(map[int64][]entities.Hashtag)
	for _, id := range taskIDs {
		for i, tag := range r.s.hashtags[id] {
			out[id] = append(out[id], entities.Hashtag{ID: int64(i + 1), Tag: tag})
		}
	}
	return out, nil
}

func (r memTasks) RecomputeSubtasksMeta(_ context.Context, parentID int64, now time.Time) (entities.SubtasksMeta, error) {
	parent, ok := r.s.tasks[parentID]
	if !ok {
		return entities.SubtasksMeta{}, entities.ErrParentNotFound
	}

	meta := entities.SubtasksMeta{LastUpdated: &now}
	for _, t := range r.s.tasks {
		if t.ParentID == nil || *t.ParentID != parentID {
			continue
		}
		meta.Count++
		for _, tc := range r.s.contexts {
			if tc.TaskID == t.ID && tc.Category == entities.CategoryDone && tc.IsVisible {
				meta.CompletedCount++
			}
		}
	}
	parent.SubtasksMeta = meta
	return meta, nil
}

func (r memTasks) ListParentIDs(_ context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range r.s.tasks {
		if t.ParentID != nil && !seen[*t.ParentID] {
			seen[*t.ParentID] = true
			ids = append(ids, *t.ParentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memTasks) views(userID uuid.UUID, keep func(*entities.Task, *entities.UserTaskContext) bool) []entities.TaskView {
	views := []entities.TaskView{}
	for _, tc := range r.s.contexts {
		if tc.UserID != userID || !tc.IsVisible {
			continue
		}
		t := r.s.tasks[tc.TaskID]
		if t == nil || !keep(t, tc) {
			continue
		}
		v := entities.TaskView{
			ID: t.ID, Slug: t.Slug, Title: t.Title, Description: t.Description,
			Priority: t.Priority, Status: tc.Category, TaskMode: t.TaskMode, CardTemplate: t.CardTemplate,
			IsAgenda: t.IsAgenda, Role: tc.Role, PersonalNote: tc.PersonalNote, SubtasksMeta: t.SubtasksMeta,
			ParentID: t.ParentID, CompletedAt: tc.CompletedAt, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
			StartDatetime: t.StartDatetime, EndDatetime: t.EndDatetime,
		}
		v.FillDates()
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views
}

func (r memTasks) ListUserTasks(_ context.Context, userID uuid.UUID, category *entities.Category) ([]entities.TaskView, error) {
	return r.views(userID, func(_ *entities.Task, tc *entities.UserTaskContext) bool {
		return category == nil || tc.Category == *category
	}), nil
}

func (r memTasks) ListSubtaskViews(_ context.Context, parentID int64, userID uuid.UUID) ([]entities.TaskView, error) {
	r.s.subtaskViewLoads++
	return r.views(userID, func(t *entities.Task, _ *entities.UserTaskContext) bool {
		return t.ParentID != nil && *t.ParentID == parentID
	}), nil
}

// contexts

type memContexts struct{ s *memStore }

func (r memContexts) Get(_ context.Context, userID uuid.UUID, taskID int64) (*entities.UserTaskContext, error) {
	tc := r.s.contextOf(userID, taskID)
	if tc == nil {
		return nil, entities.ErrContextNotFound
	}
	cp := *tc
	return &cp, nil
}

func (r memContexts) Create(_ context.Context, tc *entities.UserTaskContext) error {
	if r.s.contextOf(tc.UserID, tc.TaskID) != nil {
		return fmt.Errorf("duplicate context for user %s task %d", tc.UserID, tc.TaskID)
	}
	tc.ID = r.s.id()
	cp := *tc
	r.s.contexts[tc.ID] = &cp
	return nil
}

func (r memContexts) Update(_ context.Context, tc *entities.UserTaskContext) error {
	if _, ok := r.s.contexts[tc.ID]; !ok {
		return entities.ErrContextNotFound
	}
	cp := *tc
	r.s.contexts[tc.ID] = &cp
	return nil
}

func (r memContexts) Delete(_ context.Context, id int64) error {
	if _, ok := r.s.contexts[id]; !ok {
		return entities.ErrContextNotFound
	}
	delete(r.s.contexts, id)
	return nil
}

func (r memContexts) list(keep func(*entities.UserTaskContext) bool) []*entities.UserTaskContext {
	var out []*entities.UserTaskContext
	for _, tc := range r.s.contexts {
		if keep(tc) {
			cp := *tc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memContexts) ListByUserAndRole(_ context.Context, userID uuid.UUID, role entities.ContextRole) ([]*entities.UserTaskContext, error) {
	return r.list(func(tc *entities.UserTaskContext) bool { return tc.UserID == userID && tc.Role == role }), nil
}

func (r memContexts) ListVisibleByUser(_ context.Context, userID uuid.UUID) ([]*entities.UserTaskContext, error) {
	return r.list(func(tc *entities.UserTaskContext) bool { return tc.UserID == userID && tc.IsVisible }), nil
}

func (r memContexts) CountOtherUsers(_ context.Context, taskID int64, userID uuid.UUID) (int, error) {
	return len(r.list(func(tc *entities.UserTaskContext) bool { return tc.TaskID == taskID && tc.UserID != userID })), nil
}

func (r memContexts) DeleteNonOwnerByUser(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for id, tc := range r.s.contexts {
		if tc.UserID == userID && tc.Role != entities.RoleOwner {
			delete(r.s.contexts, id)
			n++
		}
	}
	return n, nil
}

// ancillary items

type memTimeSlots struct{ s *memStore }

func (r memTimeSlots) Create(_ context.Context, slot *entities.TimeSlot, ownerID uuid.UUID) error {
	slot.ID = r.s.id()
	r.s.timeSlots[slot.ID] = slot
	r.s.itemOwners[fmt.Sprintf("timeslot:%d", slot.ID)] = ownerID
	return nil
}

func (r memTimeSlots) GetBySlug(_ context.Context, slug string) (*entities.TimeSlot, error) {
	for _, ts := range r.s.timeSlots {
		if ts.Slug == slug {
			cp := *ts
			return &cp, nil
		}
	}
	return nil, entities.ErrElementNotFound
}

func (r memTimeSlots) UpdateCategory(_ context.Context, id int64, category entities.Category) error {
	ts, ok := r.s.timeSlots[id]
	if !ok {
		return entities.ErrElementNotFound
	}
	ts.Category = category
	return nil
}

func (r memTimeSlots) IsOwner(_ context.Context, id int64, userID uuid.UUID) (bool, error) {
	return r.s.itemOwners[fmt.Sprintf("timeslot:%d", id)] == userID, nil
}

func (r memTimeSlots) ListByOwner(_ context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.TimeSlot, error) {
	out := []*entities.TimeSlot{}
	for id, ts := range r.s.timeSlots {
		if r.s.itemOwners[fmt.Sprintf("timeslot:%d", id)] == userID && (category == nil || ts.Category == *category) {
			out = append(out, ts)
		}
	}
	return out, nil
}

type memJobSearches struct{ s *memStore }

func (r memJobSearches) Create(_ context.Context, js *entities.JobSearch, ownerID uuid.UUID) error {
	js.ID = r.s.id()
	r.s.jobSearches[js.ID] = js
	r.s.itemOwners[fmt.Sprintf("job:%d", js.ID)] = ownerID
	return nil
}

func (r memJobSearches) GetBySlug(_ context.Context, slug string) (*entities.JobSearch, error) {
	for _, js := range r.s.jobSearches {
		if js.Slug == slug {
			cp := *js
			return &cp, nil
		}
	}
	return nil, entities.ErrElementNotFound
}

func (r memJobSearches) UpdateCategory(_ context.Context, id int64, category entities.Category) error {
	js, ok := r.s.jobSearches[id]
	if !ok {
		return entities.ErrElementNotFound
	}
	js.Category = category
	return nil
}

func (r memJobSearches) IsOwner(_ context.Context, id int64, userID uuid.UUID) (bool, error) {
	return r.s.itemOwners[fmt.Sprintf("job:%d", id)] == userID, nil
}

func (r memJobSearches) ListByOwner(_ context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.JobSearch, error) {
	out := []*entities.JobSearch{}
	for id, js := range r.s.jobSearches {
		if r.s.itemOwners[fmt.Sprintf("job:%d", id)] == userID && (category == nil || js.Category == *category) {
			out = append(out, js)
		}
	}
	return out, nil
}

type memAdvertising struct{ s *memStore }

func (r memAdvertising) Create(_ context.Context, ad *entities.Advertising, ownerID uuid.UUID) error {
	ad.ID = r.s.id()
	r.s.ads = append(r.s.ads, ad)
	r.s.itemOwners[fmt.Sprintf("ad:%d", ad.ID)] = ownerID
	return nil
}

func (r memAdvertising) ListByOwner(_ context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.Advertising, error) {
	out := []*entities.Advertising{}
	for _, ad := range r.s.ads {
		if r.s.itemOwners[fmt.Sprintf("ad:%d", ad.ID)] == userID && (category == nil || ad.Category == *category) {
			out = append(out, ad)
		}
	}
	return out, nil
}

type memActivities struct{ s *memStore }

func (r memActivities) Create(_ context.Context, a *entities.Activity, ownerID uuid.UUID) error {
	a.ID = r.s.id()
	r.s.activities = append(r.s.activities, a)
	r.s.itemOwners[fmt.Sprintf("activity:%d", a.ID)] = ownerID
	return nil
}

func (r memActivities) ListByOwner(_ context.Context, userID uuid.UUID, category *entities.Category) ([]*entities.Activity, error) {
	out := []*entities.Activity{}
	for _, a := range r.s.activities {
		if r.s.itemOwners[fmt.Sprintf("activity:%d", a.ID)] == userID && (category == nil || a.Category == *category) {
			out = append(out, a)
		}
	}
	return out, nil
}

// recordingCache is a SubtaskCache that remembers invalidations.
type recordingCache struct {
	rows        map[string][]entities.TaskView
	invalidated []int64
}

func newRecordingCache() *recordingCache {
	return &recordingCache{rows: make(map[string][]entities.TaskView)}
}

func (c *recordingCache) key(parentID int64, userID uuid.UUID) string {
	return fmt.Sprintf("%d:%s", parentID, userID)
}

func (c *recordingCache) Get(_ context.Context, parentID int64, userID uuid.UUID) ([]entities.TaskView, bool, error) {
	rows, ok := c.rows[c.key(parentID, userID)]
	return rows, ok, nil
}

func (c *recordingCache) Set(_ context.Context, parentID int64, userID uuid.UUID, rows []entities.TaskView) error {
	c.rows[c.key(parentID, userID)] = rows
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, parentID int64) error {
	c.invalidated = append(c.invalidated, parentID)
	prefix := fmt.Sprintf("%d:", parentID)
	for k := range c.rows {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.rows, k)
		}
	}
	return nil
}

type fixture struct {
	store    *memStore
	cache    *recordingCache
	tracker  *SubtaskTracker
	elements *ElementService
	tasks    *TaskService
	users    *UserService
	items    *ItemService
}

func newFixture() *fixture {
	store := newMemStore()
	cache := newRecordingCache()
	log := logger.NewNop()
	m := metrics.New()

	tracker := NewSubtaskTracker(cache, m, log)
	tracker.now = func() time.Time { return baseTime }

	elements := NewElementService(store, tracker, m, log)
	elements.now = func() time.Time { return baseTime }

	return &fixture{
		store:    store,
		cache:    cache,
		tracker:  tracker,
		elements: elements,
		tasks:    NewTaskService(store, tracker, log),
		users:    NewUserService(store, tracker, m, log),
		items:    NewItemService(store, log),
	}
}
