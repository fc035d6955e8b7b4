package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"city-conquest-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartInvasion(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	attackerCity := env.seedCity(t, "Attackerville", "aa", 100000)
	targetCity := env.seedCity(t, "Targetton", "bb", 100000)
	env.seedOwnership(t, attackerCity.ID, season.ID, "attacker", 2000)
	env.seedOwnership(t, targetCity.ID, season.ID, "defender", 1000)

	invasion, err := env.invasions.StartInvasion(targetCity.ID, season.ID, "attacker", "defender")
	require.NoError(t, err)

	assert.Equal(t, models.InvasionPending, invasion.Status)
	assert.Equal(t, int64(2000), invasion.AttackerPower)
	assert.Equal(t, int64(1000), invasion.DefenderPower)
	// (2000/1000)*100 - 1*5 - 10 = 185, clamped to 100
	assert.Equal(t, 100.0, invasion.ConquestIndex)
	assert.Equal(t, env.now.Add(DefaultInvasionDuration), invasion.EndsAt)

	var events []models.GlobalEvent
	require.NoError(t, env.db.Where("event_type = ?", models.EventInvasionStarted).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "attacker", events[0].UserID)
}

func TestStartInvasionPreconditions(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	attackerCity := env.seedCity(t, "Base", "aa", 100000)
	targetCity := env.seedCity(t, "Target", "bb", 100000)
	env.seedOwnership(t, attackerCity.ID, season.ID, "attacker", 2000)
	target := env.seedOwnership(t, targetCity.ID, season.ID, "defender", 1000)

	t.Run("attacker equals defender", func(t *testing.T) {
		_, err := env.invasions.StartInvasion(targetCity.ID, season.ID, "defender", "defender")
		assert.ErrorIs(t, err, ErrSelfInvasion)
	})

	t.Run("inactive season", func(t *testing.T) {
		_, err := env.invasions.StartInvasion(targetCity.ID, "missing-season", "attacker", "defender")
		assert.ErrorIs(t, err, ErrNoActiveSeason)
	})

	t.Run("unowned city", func(t *testing.T) {
		free := env.seedCity(t, "Freetown", "cc", 50000)
		_, err := env.invasions.StartInvasion(free.ID, season.ID, "attacker", "defender")
		assert.ErrorIs(t, err, ErrCityNotOwned)
	})

	t.Run("stale defender", func(t *testing.T) {
		_, err := env.invasions.StartInvasion(targetCity.ID, season.ID, "attacker", "somebody-else")
		assert.ErrorIs(t, err, ErrDefenderMismatch)
	})

	t.Run("attacker with no cities", func(t *testing.T) {
		_, err := env.invasions.StartInvasion(targetCity.ID, season.ID, "landless", "defender")
		assert.ErrorIs(t, err, ErrNoAttackPower)
	})

	t.Run("shielded city rejected regardless of power", func(t *testing.T) {
		shield := env.now.Add(24 * time.Hour)
		require.NoError(t, env.db.Model(target).Update("shield_until", shield).Error)
		_, err := env.invasions.StartInvasion(targetCity.ID, season.ID, "attacker", "defender")
		assert.ErrorIs(t, err, ErrCityShielded)

		// Expired shield no longer blocks.
		env.advance(25 * time.Hour)
		_, err = env.invasions.StartInvasion(targetCity.ID, season.ID, "attacker", "defender")
		assert.NoError(t, err)
	})

	t.Run("duplicate pending invasion", func(t *testing.T) {
		_, err := env.invasions.StartInvasion(targetCity.ID, season.ID, "attacker", "defender")
		assert.ErrorIs(t, err, ErrInvasionInProgress)
	})

	t.Run("defenseless city rejected", func(t *testing.T) {
		emptyCity := env.seedCity(t, "Ghosttown", "dd", 100000)
		env.seedOwnership(t, emptyCity.ID, season.ID, "defender", 0)
		_, err := env.invasions.StartInvasion(emptyCity.ID, season.ID, "attacker", "defender")
		assert.ErrorIs(t, err, ErrDefenderPowerless)
	})
}

func TestResolveInvasionAttackerWins(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	attackerCity := env.seedCity(t, "Home", "aa", 100000)
	targetCity := env.seedCity(t, "Prize", "bb", 100000)
	env.seedOwnership(t, attackerCity.ID, season.ID, "attacker", 5000)
	env.seedOwnership(t, targetCity.ID, season.ID, "defender", 1000)

	invasion := env.seedInvasion(t, targetCity.ID, season.ID, "attacker", "defender", 5000, 1000, 80)
	env.draw = 0.5 // 50 < 80 → attacker wins

	won, resolved, err := env.invasions.ResolveInvasion(invasion.ID)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.InvasionWonAttacker, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	var ownership models.CityOwnership
	require.NoError(t, env.db.First(&ownership, "city_id = ? AND season_id = ?", targetCity.ID, season.ID).Error)
	assert.Equal(t, "attacker", ownership.OwnerID)
	assert.Equal(t, int64(1200), ownership.VirtualInhabitants) // 1000 + 20% bonus
	require.NotNil(t, ownership.ShieldUntil)
	assert.True(t, ownership.ShieldUntil.Equal(env.now.Add(48*time.Hour)))
	require.NotNil(t, ownership.LastAttackedAt)

	attacker, err := env.stats.GetProfile("attacker")
	require.NoError(t, err)
	assert.Equal(t, int64(2), attacker.TotalCities)
	assert.Equal(t, int64(6200), attacker.TotalInhabitants) // 5000 + 1200

	defender, err := env.stats.GetProfile("defender")
	require.NoError(t, err)
	assert.Equal(t, int64(0), defender.TotalCities)
	assert.Equal(t, int64(0), defender.TotalInhabitants)

	var events int64
	env.db.Model(&models.GlobalEvent{}).Where("event_type = ?", models.EventCityConquered).Count(&events)
	assert.Equal(t, int64(1), events)
}

func TestResolveInvasionDefenderHolds(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	attackerCity := env.seedCity(t, "Home", "aa", 100000)
	targetCity := env.seedCity(t, "Fortress", "bb", 100000)
	env.seedOwnership(t, attackerCity.ID, season.ID, "attacker", 10000)
	env.seedOwnership(t, targetCity.ID, season.ID, "defender", 4000)

	invasion := env.seedInvasion(t, targetCity.ID, season.ID, "attacker", "defender", 10000, 4000, 20)
	env.draw = 0.5 // 50 ≥ 20 → defender holds

	won, resolved, err := env.invasions.ResolveInvasion(invasion.ID)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, models.InvasionWonDefender, resolved.Status)

	// Ownership untouched.
	var ownership models.CityOwnership
	require.NoError(t, env.db.First(&ownership, "city_id = ? AND season_id = ?", targetCity.ID, season.ID).Error)
	assert.Equal(t, "defender", ownership.OwnerID)
	assert.Equal(t, int64(4000), ownership.VirtualInhabitants)
	assert.Nil(t, ownership.ShieldUntil)

	// Attacker pays 10% of the frozen power snapshot.
	attacker, err := env.stats.GetProfile("attacker")
	require.NoError(t, err)
	assert.Equal(t, int64(9000), attacker.TotalInhabitants)
	assert.Equal(t, int64(1), attacker.TotalCities)
}

func TestResolveInvasionDrawEqualToIndexFavorsDefender(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	city := env.seedCity(t, "Edge", "aa", 100000)
	env.seedOwnership(t, city.ID, season.ID, "defender", 1000)
	invasion := env.seedInvasion(t, city.ID, season.ID, "attacker", "defender", 5000, 1000, 50)
	env.draw = 0.5 // draw == index → defender holds

	won, _, err := env.invasions.ResolveInvasion(invasion.ID)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestResolveInvasionExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	city := env.seedCity(t, "Once", "aa", 100000)
	attackerCity := env.seedCity(t, "Camp", "bb", 100000)
	env.seedOwnership(t, attackerCity.ID, season.ID, "attacker", 8000)
	env.seedOwnership(t, city.ID, season.ID, "defender", 1000)
	invasion := env.seedInvasion(t, city.ID, season.ID, "attacker", "defender", 8000, 1000, 10)
	env.draw = 0.99 // defender holds: consequence is a single ledger decrement

	const resolvers = 8
	var wg sync.WaitGroup
	errs := make([]error, resolvers)
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = env.invasions.ResolveInvasion(invasion.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrNotResolvable)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one resolver must win the compare-and-swap")

	// Penalty applied exactly once: 8000 − floor(8000·0.1).
	attacker, err := env.stats.GetProfile("attacker")
	require.NoError(t, err)
	assert.Equal(t, int64(7200), attacker.TotalInhabitants)

	// Further attempts keep failing.
	_, _, err = env.invasions.ResolveInvasion(invasion.ID)
	assert.ErrorIs(t, err, ErrNotResolvable)
}

func TestTransferCityConservation(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	city := env.seedCity(t, "Ledgerton", "aa", 100000)
	other := env.seedCity(t, "Elsewhere", "bb", 100000)
	env.seedOwnership(t, city.ID, season.ID, "old", 1500)
	env.seedOwnership(t, other.ID, season.ID, "new", 300)

	require.NoError(t, env.invasions.TransferCity(city.ID, season.ID, "new", "old"))

	newOwner, err := env.stats.GetProfile("new")
	require.NoError(t, err)
	oldOwner, err := env.stats.GetProfile("old")
	require.NoError(t, err)

	assert.Equal(t, int64(2), newOwner.TotalCities)
	assert.Equal(t, int64(300+1800), newOwner.TotalInhabitants) // floor(1500·1.2) gained
	assert.Equal(t, int64(0), oldOwner.TotalCities)
	assert.Equal(t, int64(0), oldOwner.TotalInhabitants)
}

func TestTransferCityConflict(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	city := env.seedCity(t, "Contested", "aa", 100000)
	env.seedOwnership(t, city.ID, season.ID, "current", 1000)

	err := env.invasions.TransferCity(city.ID, season.ID, "new", "not-the-owner")
	assert.ErrorIs(t, err, ErrConflict)

	// Nothing moved.
	var ownership models.CityOwnership
	require.NoError(t, env.db.First(&ownership, "city_id = ?", city.ID).Error)
	assert.Equal(t, "current", ownership.OwnerID)
	assert.Equal(t, int64(1000), ownership.VirtualInhabitants)
}

func TestCancelInvasion(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	city := env.seedCity(t, "Retreat", "aa", 100000)
	env.seedOwnership(t, city.ID, season.ID, "defender", 1000)

	t.Run("within window", func(t *testing.T) {
		invasion := env.seedInvasion(t, city.ID, season.ID, "attacker", "defender", 5000, 1000, 60)
		env.advance(1 * time.Hour)

		require.NoError(t, env.invasions.CancelInvasion(invasion.ID, "attacker"))

		var reloaded models.Invasion
		require.NoError(t, env.db.First(&reloaded, "id = ?", invasion.ID).Error)
		assert.Equal(t, models.InvasionCancelled, reloaded.Status)

		// No ledger movement on cancel.
		_, err := env.stats.GetProfile("attacker")
		assert.Error(t, err) // profile never created
	})

	t.Run("outside window", func(t *testing.T) {
		invasion := env.seedInvasion(t, city.ID, season.ID, "attacker", "defender", 5000, 1000, 60)
		env.advance(3 * time.Hour)

		err := env.invasions.CancelInvasion(invasion.ID, "attacker")
		assert.ErrorIs(t, err, ErrCancellationExpired)
	})

	t.Run("only the attacker may cancel", func(t *testing.T) {
		invasion := env.seedInvasion(t, city.ID, season.ID, "attacker", "defender", 5000, 1000, 60)
		err := env.invasions.CancelInvasion(invasion.ID, "defender")
		assert.ErrorIs(t, err, ErrNotAttacker)
	})

	t.Run("resolved invasion cannot be cancelled", func(t *testing.T) {
		invasion := env.seedInvasion(t, city.ID, season.ID, "attacker", "defender", 5000, 1000, 60)
		require.NoError(t, env.db.Model(invasion).Update("status", models.InvasionWonDefender).Error)
		err := env.invasions.CancelInvasion(invasion.ID, "attacker")
		assert.ErrorIs(t, err, ErrNotResolvable)
	})
}

func TestListActiveInvasions(t *testing.T) {
	env := newTestEnv(t)
	season := env.seedSeason(t)
	cityA := env.seedCity(t, "Alpha", "aa", 100000)
	cityB := env.seedCity(t, "Beta", "bb", 100000)
	cityC := env.seedCity(t, "Gamma", "cc", 100000)
	env.seedOwnership(t, cityA.ID, season.ID, "p2", 1000)
	env.seedOwnership(t, cityB.ID, season.ID, "p1", 1000)
	env.seedOwnership(t, cityC.ID, season.ID, "p3", 1000)

	env.seedInvasion(t, cityA.ID, season.ID, "p1", "p2", 1000, 1000, 50) // p1 attacking
	env.seedInvasion(t, cityB.ID, season.ID, "p3", "p1", 1000, 1000, 50) // p1 defending
	resolvedInv := env.seedInvasion(t, cityC.ID, season.ID, "p1", "p3", 1000, 1000, 50)
	require.NoError(t, env.db.Model(resolvedInv).Update("status", models.InvasionCancelled).Error)

	active, err := env.invasions.ListActiveInvasions("p1", season.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, inv := range active {
		assert.Equal(t, models.InvasionPending, inv.Status)
	}
}

func TestStatsNeverGoNegative(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.stats.IncrementUserStats("p", 1, 100))
	require.NoError(t, env.stats.DecrementUserStats("p", 5, 10000))

	profile, err := env.stats.GetProfile("p")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.TotalCities)
	assert.Equal(t, int64(0), profile.TotalInhabitants)

	// Decrementing an untouched player creates a zeroed profile, not a
	// negative one.
	require.NoError(t, env.stats.DecrementUserStats("fresh", 1, 1))
	fresh, err := env.stats.GetProfile("fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.TotalCities)
	assert.Equal(t, int64(0), fresh.TotalInhabitants)
}

func TestResolveInvasionNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.invasions.ResolveInvasion("nope")
	assert.True(t, errors.Is(err, ErrInvasionNotFound))
}
