package services

import (
	"testing"
	"time"

	"city-conquest-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps the in-memory database shared and serializes
	// concurrent test writers instead of surfacing SQLITE_BUSY.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Country{},
		&models.City{},
		&models.Season{},
		&models.Profile{},
		&models.CityOwnership{},
		&models.Invasion{},
		&models.GlobalEvent{},
	))
	return db
}

// testEnv bundles the services under test with a controllable clock and
// random source.
type testEnv struct {
	db        *gorm.DB
	invasions *InvasionService
	cities    *CityService
	stats     *StatsService
	events    *EventsService

	now  time.Time
	draw float64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:   db,
		now:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		draw: 0.5,
	}
	env.invasions = NewInvasionService(db)
	env.invasions.Now = func() time.Time { return env.now }
	env.invasions.Rand = func() float64 { return env.draw }
	env.invasions.InvasionDuration = DefaultInvasionDuration
	env.invasions.ShieldDuration = DefaultShieldDuration
	env.invasions.CancelWindow = DefaultCancelWindow

	env.cities = NewCityService(db)
	env.cities.Now = func() time.Time { return env.now }
	env.stats = NewStatsService(db)
	env.events = NewEventsService(db)
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) seedSeason(t *testing.T) *models.Season {
	t.Helper()
	season := models.Season{
		ID:        uuid.NewString(),
		Name:      "Test Season",
		StartDate: e.now,
		EndDate:   e.now.AddDate(0, 3, 0),
		IsActive:  true,
	}
	require.NoError(t, e.db.Create(&season).Error)
	return &season
}

func (e *testEnv) seedCity(t *testing.T, name, countryID string, population int64) *models.City {
	t.Helper()
	var count int64
	e.db.Model(&models.Country{}).Where("id = ?", countryID).Count(&count)
	if count == 0 {
		require.NoError(t, e.db.Create(&models.Country{ID: countryID, Name: countryID, Code: countryID[:2]}).Error)
	}
	city := models.City{
		ID:             uuid.NewString(),
		Name:           name,
		Slug:           name,
		CountryID:      countryID,
		RealPopulation: population,
		BasePrice:      1000,
	}
	require.NoError(t, e.db.Create(&city).Error)
	return &city
}

func (e *testEnv) seedOwnership(t *testing.T, cityID, seasonID, ownerID string, inhabitants int64) *models.CityOwnership {
	t.Helper()
	ownership := models.CityOwnership{
		ID:                 uuid.NewString(),
		CityID:             cityID,
		SeasonID:           seasonID,
		OwnerID:            ownerID,
		VirtualInhabitants: inhabitants,
		CityLevel:          1,
		PurchasedAt:        e.now,
	}
	require.NoError(t, e.db.Create(&ownership).Error)
	require.NoError(t, e.stats.IncrementUserStats(ownerID, 1, inhabitants))
	return &ownership
}

func (e *testEnv) seedInvasion(t *testing.T, cityID, seasonID, attackerID, defenderID string, attackerPower, defenderPower int64, index float64) *models.Invasion {
	t.Helper()
	invasion := models.Invasion{
		ID:            uuid.NewString(),
		CityID:        cityID,
		SeasonID:      seasonID,
		AttackerID:    attackerID,
		DefenderID:    defenderID,
		AttackerPower: attackerPower,
		DefenderPower: defenderPower,
		ConquestIndex: index,
		Status:        models.InvasionPending,
		StartedAt:     e.now,
		EndsAt:        e.now.Add(DefaultInvasionDuration),
	}
	require.NoError(t, e.db.Create(&invasion).Error)
	return &invasion
}
