package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/nats-io/nats.go"

	"github.com/pmcore/pmcore/pkg/log"
)

// Scheduler runs discovery strategies on a periodic cadence and
// publishes every candidate found to a NATS subject, so other
// components (e.g. the request-port manager's Advertiser) can react
// without polling.
type Scheduler struct {
	sched gocron.Scheduler
	nc    *nats.Conn
	subj  string
}

// NewScheduler builds a Scheduler. nc may be nil (or subject empty),
// in which case publishing is a no-op and the candidates a scheduled
// run finds are not delivered anywhere.
func NewScheduler(nc *nats.Conn, subject string) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return &Scheduler{sched: sched, nc: nc, subj: subject}, nil
}

// ScheduleSubnetSweep registers a recurring subnet sweep.
func (s *Scheduler) ScheduleSubnetSweep(interval time.Duration, ctrl *Control, cidr string, ports []int) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx := context.Background()
			if _, err := SubnetSweep(ctx, ctrl, cidr, ports, s.publish); err != nil {
				log.Warnf("discovery: subnet sweep %s: %v", cidr, err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("scheduling subnet sweep: %w", err)
	}
	return nil
}

// ScheduleShellProbe registers a recurring shell-script probe.
func (s *Scheduler) ScheduleShellProbe(interval time.Duration, ctrl *Control, scriptDir string, ports []int) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx := context.Background()
			if _, err := ShellProbe(ctx, ctrl, scriptDir, ports, s.publish); err != nil {
				log.Warnf("discovery: shell probe %s: %v", scriptDir, err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("scheduling shell probe: %w", err)
	}
	return nil
}

func (s *Scheduler) publish(c Candidate) {
	if s.nc == nil || s.subj == "" {
		return
	}
	body, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.nc.Publish(s.subj, body); err != nil {
		log.Warnf("discovery: publishing candidate: %v", err)
	}
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() { s.sched.Start() }

// Stop shuts the scheduler down, waiting for in-flight jobs.
func (s *Scheduler) Stop() error { return s.sched.Shutdown() }
