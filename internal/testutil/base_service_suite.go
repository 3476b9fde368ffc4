package testutil

import (
	"context"
	"time"

	"github.com/rentwise/rentwise/internal/cache"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/domain/lease"
	"github.com/rentwise/rentwise/internal/domain/property"
	"github.com/rentwise/rentwise/internal/domain/user"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/rentwise/rentwise/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Fixture identities seeded by every suite
const (
	TenantID      = "usr_tenant"
	OtherTenantID = "usr_other_tenant"
	LandlordID    = "usr_landlord"
	StrangerID    = "usr_stranger"
	PropertyID    = "prop_1"
	LeaseID       = "lease_1"
)

// Stores holds all the repository implementations for testing
type Stores struct {
	PaymentRepo  *InMemoryPaymentStore
	UserRepo     *InMemoryUserStore
	PropertyRepo *InMemoryPropertyStore
	LeaseRepo    *InMemoryLeaseStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	gateway   *FakeGateway
	publisher *InMemoryNotificationPublisher
	cache     cache.Cache
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()
	s.config.Logging.Level = types.LogLevelError

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext(LandlordID, types.UserRoleLandlord)
	s.setupStores()
	s.now = time.Now().UTC()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		PaymentRepo:  NewInMemoryPaymentStore(),
		UserRepo:     NewInMemoryUserStore(),
		PropertyRepo: NewInMemoryPropertyStore(),
		LeaseRepo:    NewInMemoryLeaseStore(),
	}
	s.gateway = NewFakeGateway()
	s.publisher = NewInMemoryNotificationPublisher()
	s.cache = cache.NewInMemoryCache(s.config)

	s.stores.UserRepo.Add(&user.User{ID: TenantID, Name: "Tina Tenant", Email: "tina@example.com", Role: types.UserRoleTenant})
	s.stores.UserRepo.Add(&user.User{ID: OtherTenantID, Name: "Otto Tenant", Email: "otto@example.com", Role: types.UserRoleTenant})
	s.stores.UserRepo.Add(&user.User{ID: LandlordID, Name: "Lara Landlord", Email: "lara@example.com", Role: types.UserRoleLandlord})
	s.stores.UserRepo.Add(&user.User{ID: StrangerID, Name: "Sam Stranger", Email: "sam@example.com", Role: types.UserRoleTenant})
	s.stores.PropertyRepo.Add(&property.Property{ID: PropertyID, LandlordID: LandlordID, Title: "Maple Street Loft", Address: "12 Maple Street"})
	s.stores.LeaseRepo.Add(&lease.Lease{
		ID:          LeaseID,
		TenantID:    TenantID,
		LandlordID:  LandlordID,
		PropertyID:  PropertyID,
		MonthlyRent: decimal.NewFromInt(1000),
		Status:      "active",
	})
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// SetContextUser replaces the caller on the test context
func (s *BaseServiceTestSuite) SetContextUser(userID string, role types.UserRole) {
	s.ctx = SetupContext(userID, role)
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetGateway returns the fake payment gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetPublisher returns the notification publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryNotificationPublisher {
	return s.publisher
}

// GetCache returns the lookup cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}
