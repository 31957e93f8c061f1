package server

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Start schedules the sweeps of expired pending authorizations and sessions.
func (s *Server) Start() error {
	s.cronLock.Lock()
	defer s.cronLock.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.config.GetSweepSchedule(), s.Sweep); err != nil {
		return fmt.Errorf("[server.Start] failed to schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Close stops the scheduler and waits for a running sweep to finish.
func (s *Server) Close() {
	s.cronLock.Lock()
	c := s.cron
	s.cron = nil
	s.cronLock.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Sweep drops expired pending authorizations and sessions past their grace window.
func (s *Server) Sweep() {
	now := s.nowTime()
	pending := s.pending.Sweep(now)
	sessions := s.loginSessions.Sweep(now, s.config.GetSessionGracePeriod())

	s.metrics.SweptTotal.WithLabelValues("pending").Add(float64(pending))
	s.metrics.SweptTotal.WithLabelValues("sessions").Add(float64(sessions))

	if pending > 0 || sessions > 0 {
		log.Debug().
			Int("pending", pending).
			Int("sessions", sessions).
			Msg("swept expired records")
	}
}
