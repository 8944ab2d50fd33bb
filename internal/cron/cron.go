package cron

import (
	"context"
	"os"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/bccstack/interfaces"
	cron_config "github.com/customeros/bccstack/internal/cron/config"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/tracing"
)

const (
	// GroupCapture is the lock group for jobs touching ingestion records
	GroupCapture = "capture"

	LeaseName = "bccstack-cron-leader"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	sweepTimeout = 2 * time.Minute
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupCapture: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg     *cron_config.Config
	log     logger.Logger
	cron    *cronv3.Cron
	k8s     kubernetes.Interface
	stopCh  chan struct{}
	stopped sync.Once
	jobIDs  map[string]cronv3.EntryID
	sweeper interfaces.StalePendingSweeper
	podName string
}

func NewCronManager(cfg *cron_config.Config, log logger.Logger, k8s kubernetes.Interface, sweeper interfaces.StalePendingSweeper, podName string) *CronManager {
	if cfg == nil {
		cfg = &cron_config.Config{}
	}
	if podName == "" {
		podName = "local"
	}
	return &CronManager{
		cfg:     cfg,
		log:     log,
		k8s:     k8s,
		stopCh:  make(chan struct{}),
		jobIDs:  make(map[string]cronv3.EntryID),
		sweeper: sweeper,
		podName: podName,
	}
}

// Start runs the scheduler on the elected leader only. With no k8s client it
// starts in local mode without leader election.
func (cm *CronManager) Start(namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      LeaseName,
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: cm.podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-cm.stopCh
			cancel()
		}()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop waits for running jobs. It is safe to call more than once.
func (cm *CronManager) Stop() {
	cm.stopped.Do(func() {
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			<-cm.cron.Stop().Done()
		}
		close(cm.stopCh)
	})
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	if cm.cfg.CronScheduleHeartbeat != "" {
		id, err := c.AddFunc(cm.cfg.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", cm.podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cm.cfg.CronScheduleHeartbeat)
	}

	if cm.cfg.CronScheduleStalePending != "" && cm.sweeper != nil {
		id, err := c.AddFunc(cm.cfg.CronScheduleStalePending, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupCapture].Lock()
			defer jobLocks.locks[GroupCapture].Unlock()
			cm.sweepStalePending()
		})
		if err != nil {
			cm.log.Fatalf("Could not add stale pending cron job: %v", err)
		}
		cm.jobIDs["stale_pending"] = id
		cm.log.Infof("Registered stale pending job with schedule: %s", cm.cfg.CronScheduleStalePending)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) sweepStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.sweepStalePending")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	annotated, err := cm.sweeper.SweepStalePending(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to sweep stale pending captures: %v", err)
		return
	}
	span.LogKV("annotated", annotated)
	if annotated > 0 {
		cm.log.Infof("Annotated %d stale pending captures", annotated)
	}
}
