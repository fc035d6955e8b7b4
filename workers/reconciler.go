package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"city-conquest-system/models"
	"city-conquest-system/services"

	"github.com/cenkalti/backoff/v4"
)

// ReconcileInvasions is the safety net for the accepted inconsistency
// window: an invasion flipped to won_attacker whose transfer then failed
// leaves the city with the loser. Each pass finds such invasions and
// re-attempts the transfer; conflicts mean the city has since moved on and
// are skipped.
//
// Runs until ctx is cancelled.
func ReconcileInvasions(ctx context.Context, invasions *services.InvasionService, pollInterval time.Duration) {
	log.Println("Starting invasion reconciler...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Invasion reconciler stopped.")
			return
		case <-ticker.C:
			if err := ReconcileOnce(ctx, invasions); err != nil {
				log.Printf("❌ [RECONCILER] pass failed: %v", err)
			}
		}
	}
}

// ReconcileOnce runs a single reconciliation pass.
func ReconcileOnce(ctx context.Context, invasions *services.InvasionService) error {
	var stranded []models.Invasion
	err := invasions.DB.Model(&models.Invasion{}).
		Select("invasions.*").
		Joins("JOIN city_ownerships ON city_ownerships.city_id = invasions.city_id AND city_ownerships.season_id = invasions.season_id").
		Where("invasions.status = ? AND city_ownerships.owner_id = invasions.defender_id", models.InvasionWonAttacker).
		Find(&stranded).Error
	if err != nil {
		return err
	}
	if len(stranded) == 0 {
		return nil
	}

	log.Printf("🔧 [RECONCILER] %d won-but-untransferred invasion(s)", len(stranded))
	for _, invasion := range stranded {
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		err := backoff.Retry(func() error {
			err := invasions.TransferCity(invasion.CityID, invasion.SeasonID, invasion.AttackerID, invasion.DefenderID)
			if errors.Is(err, services.ErrConflict) || errors.Is(err, services.ErrCityNotOwned) {
				// City moved on since the win; nothing left to repair.
				return backoff.Permanent(err)
			}
			return err
		}, policy)
		switch {
		case err == nil:
			log.Printf("✅ [RECONCILER] completed transfer for invasion %s", invasion.ID)
		case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrCityNotOwned):
			log.Printf("⚠️  [RECONCILER] invasion %s skipped: %v", invasion.ID, err)
		default:
			log.Printf("❌ [RECONCILER] invasion %s still stranded: %v", invasion.ID, err)
		}
	}
	return nil
}
