package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	nextID    int64
	createErr error
	getErr    error
	existsErr error

	// existsBlind makes ExistsByUsername report false, simulating a check that lost a race.
	existsBlind bool
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[string]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Username]; exists {
		return domain.ErrUserAlreadyExists
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.Username] = user
	return nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, exists := m.users[username]; exists {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.existsBlind {
		return false, nil
	}
	_, exists := m.users[username]
	return exists, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

// MockRuleRepository is a mock implementation of repository.RuleRepository.
type MockRuleRepository struct {
	mu       sync.Mutex
	rules    []*domain.Rule
	nextID   int64
	listErr  error
	countErr error
	inserts  int
}

func NewMockRuleRepository() *MockRuleRepository {
	return &MockRuleRepository{nextID: 1}
}

func (m *MockRuleRepository) List(ctx context.Context) ([]*domain.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*domain.Rule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MockRuleRepository) ListByCrop(ctx context.Context, crop string) ([]*domain.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Rule
	for _, r := range m.rules {
		if strings.EqualFold(r.Crop, strings.TrimSpace(crop)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRuleRepository) Crops(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, r := range m.rules {
		if !seen[r.Crop] {
			seen[r.Crop] = true
			out = append(out, r.Crop)
		}
	}
	return out, nil
}

func (m *MockRuleRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.rules)), nil
}

func (m *MockRuleRepository) CreateBatch(ctx context.Context, rules []*domain.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, r := range rules {
		r.ID = m.nextID
		m.nextID++
		m.rules = append(m.rules, r)
	}
	sort.Slice(m.rules, func(i, j int) bool { return m.rules[i].ID < m.rules[j].ID })
	m.inserts++
	return nil
}

// MockPredictor is a testify mock of Predictor.
type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(reading domain.NutrientReading) (string, error) {
	args := m.Called(reading)
	return args.String(0), args.Error(1)
}

// recordingRecorder counts outcomes in memory.
type recordingRecorder struct {
	mu              sync.Mutex
	recommendations map[string]int
	signups         map[bool]int
	logins          map[bool]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{
		recommendations: make(map[string]int),
		signups:         make(map[bool]int),
		logins:          make(map[bool]int),
	}
}

func (r *recordingRecorder) RecordRecommendation(source, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recommendations[source+"/"+outcome]++
}

func (r *recordingRecorder) RecordSignup(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signups[ok]++
}

func (r *recordingRecorder) RecordLogin(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[ok]++
}
