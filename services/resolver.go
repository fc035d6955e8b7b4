package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"city-conquest-system/models"

	"github.com/go-co-op/gocron/v2"
)

// DefaultResolverInterval is how often the resolver scans for expired
// pending invasions. Override with RESOLVER_INTERVAL.
const DefaultResolverInterval = 10 * time.Second

// InvasionResolver is the background half of invasion resolution: a
// recurring job that discovers expired pending invasions and drives each
// through ResolveInvasion. It keeps no state across passes beyond the
// running flag — every pass re-derives its work from the invasions table,
// so any number of restarts (or concurrent instances) are safe: the
// compare-and-swap inside ResolveInvasion guarantees one winner per row.
type InvasionResolver struct {
	Invasions *InvasionService
	Interval  time.Duration

	mu    sync.Mutex
	sched gocron.Scheduler
}

func NewInvasionResolver(invasions *InvasionService) *InvasionResolver {
	return &InvasionResolver{
		Invasions: invasions,
		Interval:  durationEnv("RESOLVER_INTERVAL", DefaultResolverInterval),
	}
}

// Start launches the recurring job. Calling Start on a running resolver is
// a no-op.
func (r *InvasionResolver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sched != nil {
		log.Println("⚠️  [RESOLVER] already running")
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(r.Interval),
		gocron.NewTask(r.ResolveExpired),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}
	sched.Start()
	r.sched = sched
	log.Printf("✅ [RESOLVER] started (every %s)", r.Interval)
	return nil
}

// Stop shuts the job down. Safe to call when not running.
func (r *InvasionResolver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sched == nil {
		return
	}
	if err := r.sched.Shutdown(); err != nil {
		log.Printf("❌ [RESOLVER] shutdown error: %v", err)
	}
	r.sched = nil
	log.Println("🛑 [RESOLVER] stopped")
}

// ResolveExpired runs one pass: every pending invasion whose ends_at has
// passed goes through ResolveInvasion. A failure on one invasion is logged
// and does not block the rest of the batch; races lost to another resolver
// surface as ErrNotResolvable and are not errors.
func (r *InvasionResolver) ResolveExpired() {
	var expired []models.Invasion
	err := r.Invasions.DB.
		Where("status = ? AND ends_at < ?", models.InvasionPending, r.Invasions.Now()).
		Find(&expired).Error
	if err != nil {
		log.Printf("❌ [RESOLVER] query failed: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	log.Printf("🎲 [RESOLVER] resolving %d expired invasion(s)", len(expired))
	for _, invasion := range expired {
		if _, _, err := r.Invasions.ResolveInvasion(invasion.ID); err != nil {
			if errors.Is(err, ErrNotResolvable) {
				continue // another resolver got there first
			}
			log.Printf("❌ [RESOLVER] invasion %s: %v", invasion.ID, err)
		}
	}
}

// ForceResolveAll pushes every pending invasion through resolution
// regardless of expiry. Operational/testing escape hatch; returns the
// number of invasions that actually transitioned.
func (r *InvasionResolver) ForceResolveAll() (int, error) {
	var pending []models.Invasion
	err := r.Invasions.DB.Where("status = ?", models.InvasionPending).Find(&pending).Error
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, invasion := range pending {
		if _, _, err := r.Invasions.ResolveInvasion(invasion.ID); err != nil {
			if errors.Is(err, ErrNotResolvable) {
				continue
			}
			log.Printf("❌ [RESOLVER] force-resolve %s: %v", invasion.ID, err)
			continue
		}
		resolved++
	}
	log.Printf("⚡ [RESOLVER] force-resolved %d invasion(s)", resolved)
	return resolved, nil
}
