package scheduler

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RunFunc executes one full scrape run.
type RunFunc func() error

// Scheduler manages periodic execution of scrape runs: one run at
// startup, one every day at the configured hour, plus manual triggers
// from the API. Runs never overlap.
type Scheduler struct {
	run          RunFunc
	logger       *logrus.Logger
	scrapeHour   int
	stopChan     chan struct{}
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures sequential run execution
	isStartupRun bool       // Tracks whether we're in the startup run
}

// NewScheduler creates a new scheduler firing the daily run at scrapeHour
func NewScheduler(run RunFunc, scrapeHour int, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		run:          run,
		logger:       logger,
		scrapeHour:   scrapeHour,
		stopChan:     make(chan struct{}),
		isStartupRun: true,
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

// runScheduler handles all scheduled tasks
func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	// Run the startup scrape in a separate goroutine
	go func() {
		s.jobMutex.Lock()
		defer s.jobMutex.Unlock()
		s.logger.Info("Running startup scrape")
		s.executeRun("startup")
		s.isStartupRun = false
		s.logger.Info("Startup scrape completed")
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

// executeScheduledJobs runs the daily scrape when its slot comes up
func (s *Scheduler) executeScheduledJobs(t time.Time) {
	// Skip if we're still running the startup scrape
	if s.isStartupRun {
		s.logger.Debug("Skipping scheduled jobs while startup is in progress")
		return
	}

	if t.Hour() != s.scrapeHour || t.Minute() != 0 {
		return
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Info("Starting scheduled scrape run")
	s.executeRun("scheduled")
	s.logger.Info("Completed scheduled scrape run")
}

// TriggerRun starts a run immediately unless one is already in flight.
func (s *Scheduler) TriggerRun() error {
	if !s.jobMutex.TryLock() {
		return errors.New("a scrape run is already in progress")
	}

	go func() {
		defer s.jobMutex.Unlock()
		s.executeRun("manual")
	}()
	return nil
}

func (s *Scheduler) executeRun(kind string) {
	if err := s.run(); err != nil {
		s.logger.WithError(err).WithField("job_type", kind).Error("Scrape run failed")
		return
	}
	s.logger.WithField("job_type", kind).Info("Scrape run completed successfully")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
