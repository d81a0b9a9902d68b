package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/repository"
)

// memUserRepo is an in-memory port.UserRepository keyed by id.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo(users ...*domain.User) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		clone := *u
		repo.users[u.ID] = &clone
	}
	return repo
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == domain.NormalizeEmail(user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	user.Email = domain.NormalizeEmail(user.Email)
	r.users[user.ID] = &user
	return nil
}

func (r *memUserRepo) byEmail(email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.byEmail(email)
	if err != nil {
		return nil, err
	}
	clone := *u
	clone.PasswordHash = ""
	clone.RefreshTokenHash = nil
	return &clone, nil
}

func (r *memUserRepo) GetByEmailWithSecrets(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.byEmail(email)
	if err != nil {
		return nil, err
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	clone.PasswordHash = ""
	clone.RefreshTokenHash = nil
	return &clone, nil
}

func (r *memUserRepo) GetByIDWithSecrets(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = stored.PasswordHash
	user.RefreshTokenHash = stored.RefreshTokenHash
	user.Email = domain.NormalizeEmail(user.Email)
	r.users[user.ID] = &user
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id string, hash domain.PasswordHash, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = changedAt
	return nil
}

func (r *memUserRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (r *memUserRepo) SetRefreshTokenHash(_ context.Context, id string, hash *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.RefreshTokenHash = hash
	return nil
}

func (r *memUserRepo) SetOTPLock(_ context.Context, id string, until *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.OTPLockedUntil = until
	return nil
}

// memOTPStore is an in-memory port.OTPStore keyed by purpose and email.
type memOTPStore struct {
	mu      sync.Mutex
	records map[string]*port.OTPRecord
	now     func() time.Time
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{
		records: make(map[string]*port.OTPRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func otpKey(purpose domain.OTPPurpose, email string) string {
	return string(purpose) + ":" + email
}

func (s *memOTPStore) Store(_ context.Context, purpose domain.OTPPurpose, email string, codeHash domain.OTPHash, ttl time.Duration) (*port.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	record := &port.OTPRecord{
		Purpose:   purpose,
		Email:     email,
		CodeHash:  codeHash,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.records[otpKey(purpose, email)] = record
	return record, nil
}

func (s *memOTPStore) Fetch(_ context.Context, purpose domain.OTPPurpose, email string) (*port.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[otpKey(purpose, email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *memOTPStore) IncrementAttempts(_ context.Context, purpose domain.OTPPurpose, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[otpKey(purpose, email)]
	if !ok {
		return 0, repository.ErrNotFound
	}
	record.Attempts++
	return record.Attempts, nil
}

func (s *memOTPStore) Delete(_ context.Context, purpose domain.OTPPurpose, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := otpKey(purpose, email)
	if _, ok := s.records[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// memGrantStore is an in-memory port.ResetGrantStore.
type memGrantStore struct {
	mu     sync.Mutex
	grants map[string]string
}

func newMemGrantStore() *memGrantStore {
	return &memGrantStore{grants: make(map[string]string)}
}

func (s *memGrantStore) Store(_ context.Context, email, grantHash string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[email] = grantHash
	return nil
}

func (s *memGrantStore) Consume(_ context.Context, email, grantHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.grants[email]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.grants, email)
	if stored != grantHash {
		return repository.ErrNotFound
	}
	return nil
}

// memTaskRepo is an in-memory port.TaskRepository.
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newMemTaskRepo(tasks ...*domain.Task) *memTaskRepo {
	repo := &memTaskRepo{tasks: make(map[string]*domain.Task)}
	for _, t := range tasks {
		clone := *t
		repo.tasks[t.ID] = &clone
	}
	return repo
}

func (r *memTaskRepo) Create(_ context.Context, task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = &task
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *memTaskRepo) ListByUser(_ context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *memTaskRepo) Update(_ context.Context, task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return repository.ErrNotFound
	}
	r.tasks[task.ID] = &task
	return nil
}

func (r *memTaskRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

// recordingMailer captures every SendOTP call.
type recordingMailer struct {
	mu         sync.Mutex
	configured bool
	sent       []sentMail
}

type sentMail struct {
	To      string
	Code    string
	Purpose domain.OTPPurpose
}

func (m *recordingMailer) SendOTP(_ context.Context, to, code string, purpose domain.OTPPurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Code: code, Purpose: purpose})
	return nil
}

func (m *recordingMailer) Configured() bool { return m.configured }

// recordingPublisher counts published events by type.
type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	verified   []domain.UserVerifiedEvent
	pwChanged  []domain.PasswordChangedEvent
	loggedOut  []domain.UserLoggedOutEvent
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return nil
}

func (p *recordingPublisher) PublishUserVerified(_ context.Context, e domain.UserVerifiedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verified = append(p.verified, e)
	return nil
}

func (p *recordingPublisher) PublishPasswordChanged(_ context.Context, e domain.PasswordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pwChanged = append(p.pwChanged, e)
	return nil
}

func (p *recordingPublisher) PublishUserLoggedOut(_ context.Context, e domain.UserLoggedOutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedOut = append(p.loggedOut, e)
	return nil
}
