package processor

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"czreality/server/config"
	"czreality/server/internal/models"
	"czreality/server/internal/queue"
)

// MockDB is a mock implementation of TransactionalDB
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error {
	args := m.Called(fc)
	return args.Error(0)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.BatchProcessing.ProcessorCount = 2
	cfg.BatchProcessing.MaxRetries = 3
	cfg.BatchProcessing.RetryDelay = 0
	return cfg
}

func TestNewBatchProcessor(t *testing.T) {
	mockDB := &MockDB{}
	logger := logrus.New()
	mockQueue := queue.NewListingQueue(10, logger)
	cfg := testConfig()

	processor := NewBatchProcessor(mockDB, mockQueue, cfg, logger)

	assert.NotNil(t, processor)
	assert.Equal(t, mockDB, processor.db)
	assert.Equal(t, mockQueue, processor.queue)
	assert.Equal(t, cfg, processor.config)
	assert.Equal(t, logger, processor.logger)
}

func TestBatchProcessor_ProcessBatch(t *testing.T) {
	mockDB := &MockDB{}
	logger := logrus.New()
	mockQueue := queue.NewListingQueue(10, logger)
	cfg := testConfig()

	processor := NewBatchProcessor(mockDB, mockQueue, cfg, logger)

	batch := []*models.EnrichedListing{
		{Listing: models.Listing{ID: "sreality_domy_1"}},
		{Listing: models.Listing{ID: "sreality_domy_2"}},
	}

	// Test successful processing
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()
	err := processor.processBatch(batch)
	assert.NoError(t, err)

	// Test retry on failure
	mockDB.On("Transaction", mock.Anything).Return(errors.New("db error")).Times(4)
	err = processor.processBatch(batch)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process batch after 3 attempts")
	mockDB.AssertExpectations(t)
}

func TestBatchProcessor_StartStop(t *testing.T) {
	mockDB := &MockDB{}
	logger := logrus.New()
	mockQueue := queue.NewListingQueue(10, logger)

	processor := NewBatchProcessor(mockDB, mockQueue, testConfig(), logger)

	processor.Start()
	time.Sleep(100 * time.Millisecond) // Give time for goroutines to start

	processor.Stop()
	mockQueue.Close()
	assert.True(t, mockQueue.IsClosed())
}
