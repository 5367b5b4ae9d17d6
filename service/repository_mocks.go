package service

import (
	"context"
	"time"

	"loyaltycast/events"
	"loyaltycast/models"

	"github.com/stretchr/testify/mock"
)

// MockProgramRepository is a mock implementation of ProgramRepository
type MockProgramRepository struct {
	mock.Mock
}

func (m *MockProgramRepository) GetByTenantAndWalletID(ctx context.Context, tenantID, walletProgramID string) (*models.Program, error) {
	args := m.Called(ctx, tenantID, walletProgramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *MockProgramRepository) ListBirthdayEnabled(ctx context.Context) ([]*models.Program, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Program), args.Error(1)
}

// MockMemberRepository is a mock implementation of MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) ListEligible(ctx context.Context, programID int64, protocol models.Protocol) ([]*models.Member, error) {
	args := m.Called(ctx, programID, protocol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

func (m *MockMemberRepository) ListWithBirthDates(ctx context.Context, programID int64) ([]*models.Member, error) {
	args := m.Called(ctx, programID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

// MockCampaignLogRepository is a mock implementation of CampaignLogRepository
type MockCampaignLogRepository struct {
	mock.Mock
}

func (m *MockCampaignLogRepository) Append(ctx context.Context, entry *models.CampaignLog) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCampaignLogRepository) Query(ctx context.Context, programID *int64, limit int) ([]*models.CampaignLog, error) {
	args := m.Called(ctx, programID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CampaignLog), args.Error(1)
}

// MockBirthdayClaimRepository is a mock implementation of BirthdayClaimRepository
type MockBirthdayClaimRepository struct {
	mock.Mock
}

func (m *MockBirthdayClaimRepository) Claim(ctx context.Context, memberID int64, year int) (bool, error) {
	args := m.Called(ctx, memberID, year)
	return args.Bool(0), args.Error(1)
}

func (m *MockBirthdayClaimRepository) Release(ctx context.Context, memberID int64, year int) error {
	args := m.Called(ctx, memberID, year)
	return args.Error(0)
}

// MockPointsGranter is a mock implementation of PointsGranter
type MockPointsGranter struct {
	mock.Mock
}

func (m *MockPointsGranter) GrantPoints(ctx context.Context, memberID int64, amount int64, description string, metadata map[string]any) error {
	args := m.Called(ctx, memberID, amount, description, metadata)
	return args.Error(0)
}

// MockWalletGateway is a mock implementation of WalletGateway
type MockWalletGateway struct {
	mock.Mock
}

func (m *MockWalletGateway) SendMessage(ctx context.Context, walletInternalID, walletProgramID, text string) error {
	args := m.Called(ctx, walletInternalID, walletProgramID, text)
	return args.Error(0)
}

// MockEstimateCache is a mock implementation of EstimateCache
type MockEstimateCache struct {
	mock.Mock
}

func (m *MockEstimateCache) Get(ctx context.Context, key string) (int, bool, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockEstimateCache) Set(ctx context.Context, key string, count int, ttl time.Duration) error {
	args := m.Called(ctx, key, count, ttl)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}
