package engine

import (
	"github.com/robfig/cron/v3"

	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/worker"
)

const reindexConcurrency = 4

// Scheduler runs the recurring background jobs: the nightly trust and
// gap recompute, and the queued-artifact reindex retry.
type Scheduler struct {
	engine *Engine
	log    *logger.Logger
	cfg    model.SchedulerConfig
	cron   *cron.Cron
}

// NewScheduler creates a scheduler bound to an engine
func NewScheduler(e *Engine, log *logger.Logger, cfg model.SchedulerConfig) *Scheduler {
	return &Scheduler{engine: e, log: log, cfg: cfg, cron: cron.New()}
}

// Start registers the cron entries and begins running them
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.NightlySpec, s.runNightly); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ReindexSpec, s.runReindex); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started",
		"nightly", s.cfg.NightlySpec, "reindex", s.cfg.ReindexSpec)
	return nil
}

// Stop halts the cron loop; running jobs finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// runNightly rescores trust for every indexed artifact and recomputes
// the gap snapshot for every published set
func (s *Scheduler) runNightly() {
	artifacts, err := s.engine.store.ListArtifactsByState(model.IndexReady)
	if err != nil {
		s.log.Error("nightly rescore: list artifacts", "error", err)
		return
	}
	for _, a := range artifacts {
		if _, err := s.engine.trust.Score(a.ID); err != nil {
			s.log.Warn("nightly trust rescore failed", "artifact_id", a.ID, "error", err)
		}
	}

	for _, setID := range s.engine.graphs.SetIDs() {
		if _, err := s.engine.gaps.Compute(setID); err != nil {
			s.log.Warn("nightly gap recompute failed", "set_id", setID, "error", err)
		}
	}
	s.log.Info("nightly recompute finished",
		"artifacts", len(artifacts), "sets", len(s.engine.graphs.SetIDs()))
}

// runReindex retries artifacts whose embedding failed earlier. Artifacts
// that fail again stay queued for the next pass.
func (s *Scheduler) runReindex() {
	queued, err := s.engine.store.ListArtifactsByState(model.IndexQueued)
	if err != nil {
		s.log.Error("reindex pass: list queued artifacts", "error", err)
		return
	}
	if len(queued) == 0 {
		return
	}

	ids := make([]string, len(queued))
	for i, a := range queued {
		ids[i] = a.ID
	}

	recovered := 0
	for _, r := range worker.ReindexBatch(s.engine.mapper, reindexConcurrency, ids) {
		if r.Error != nil {
			s.log.Warn("reindex still failing", "artifact_id", r.ArtifactID, "error", r.Error)
			continue
		}
		recovered++
	}
	s.log.Info("reindex pass finished", "queued", len(ids), "recovered", recovered)
}
