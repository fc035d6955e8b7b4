package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"city-conquest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gameplay timing defaults. Each can be overridden with a time.ParseDuration
// value in the matching environment variable.
const (
	DefaultInvasionDuration = 24 * time.Second // INVASION_DURATION — short window suited to fast game cycles
	DefaultShieldDuration   = 48 * time.Hour   // SHIELD_DURATION — immunity after a successful conquest
	DefaultCancelWindow     = 2 * time.Hour    // CANCEL_WINDOW — attacker may back out this long after starting
)

// InvasionService orchestrates the invasion lifecycle:
// pending → won_attacker | won_defender | cancelled, all terminal.
// Clock and random source are injectable so tests can pin outcomes.
type InvasionService struct {
	DB     *gorm.DB
	Events *EventsService
	Stats  *StatsService

	Now  func() time.Time
	Rand func() float64 // uniform in [0,1)

	InvasionDuration time.Duration
	ShieldDuration   time.Duration
	CancelWindow     time.Duration
}

func NewInvasionService(db *gorm.DB) *InvasionService {
	return &InvasionService{
		DB:               db,
		Events:           NewEventsService(db),
		Stats:            NewStatsService(db),
		Now:              time.Now,
		Rand:             rand.Float64,
		InvasionDuration: durationEnv("INVASION_DURATION", DefaultInvasionDuration),
		ShieldDuration:   durationEnv("SHIELD_DURATION", DefaultShieldDuration),
		CancelWindow:     durationEnv("CANCEL_WINDOW", DefaultCancelWindow),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

// AttackerPower is the live sum of a player's owned-city inhabitants in the
// season. It is snapshotted into the invasion at start and never refreshed.
func (s *InvasionService) AttackerPower(userID, seasonID string) (int64, error) {
	var power int64
	err := s.DB.Model(&models.CityOwnership{}).
		Where("owner_id = ? AND season_id = ?", userID, seasonID).
		Select("COALESCE(SUM(virtual_inhabitants), 0)").
		Scan(&power).Error
	if err != nil {
		return 0, fmt.Errorf("sum attacker power: %w", err)
	}
	return power, nil
}

// StartInvasion validates every precondition, freezes both power snapshots
// and the conquest index, and persists the pending invasion. Any failed
// precondition rejects the attempt with no side effects.
func (s *InvasionService) StartInvasion(cityID, seasonID, attackerID, defenderID string) (*models.Invasion, error) {
	if attackerID == defenderID {
		return nil, ErrSelfInvasion
	}

	var season models.Season
	if err := s.DB.First(&season, "id = ? AND is_active = ?", seasonID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSeason
		}
		return nil, err
	}

	var ownership models.CityOwnership
	err := s.DB.Preload("City").First(&ownership, "city_id = ? AND season_id = ?", cityID, seasonID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCityNotOwned
		}
		return nil, err
	}

	// Guard against a stale client racing a transfer: the defender the
	// attacker clicked must still be the current owner.
	if ownership.OwnerID != defenderID {
		return nil, ErrDefenderMismatch
	}

	now := s.Now()
	if ownership.HasShield(now) {
		return nil, ErrCityShielded
	}

	var pending int64
	err = s.DB.Model(&models.Invasion{}).
		Where("city_id = ? AND season_id = ? AND status = ?", cityID, seasonID, models.InvasionPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrInvasionInProgress
	}

	attackerPower, err := s.AttackerPower(attackerID, seasonID)
	if err != nil {
		return nil, err
	}
	if attackerPower == 0 {
		return nil, ErrNoAttackPower
	}

	defenderPower := ownership.VirtualInhabitants
	if defenderPower == 0 {
		return nil, ErrDefenderPowerless
	}

	// Shield was already checked above; the index is frozen here for the
	// lifetime of the invasion.
	index := CalculateConquestIndex(float64(attackerPower), float64(defenderPower), ownership.CityLevel, false)

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
		StartedAt:     now,
		EndsAt:        now.Add(s.InvasionDuration),
	}
	if err := s.DB.Create(&invasion).Error; err != nil {
		return nil, fmt.Errorf("create invasion: %w", err)
	}

	log.Printf("⚔️  [INVASION] %s invades %s (index %.1f%%, attacker %d vs defender %d)",
		attackerID, ownership.City.Name, index, attackerPower, defenderPower)

	if err := s.Events.Append(seasonID, models.EventInvasionStarted, attackerID, &cityID, nil,
		fmt.Sprintf("started an invasion of %s", ownership.City.Name)); err != nil {
		return nil, err
	}

	return &invasion, nil
}

// ResolveInvasion draws the outcome for a pending invasion and applies its
// consequences exactly once. The status flip is a compare-and-swap keyed on
// the row still being pending: of N concurrent resolvers exactly one
// proceeds past it, the rest observe the transition and get ErrNotResolvable
// with no side effects.
//
// If the transfer fails after the flip the invasion stays won_attacker with
// ownership unmoved; the error is surfaced for the reconciler rather than
// rolling the flip back.
func (s *InvasionService) ResolveInvasion(invasionID string) (bool, *models.Invasion, error) {
	var invasion models.Invasion
	if err := s.DB.First(&invasion, "id = ?", invasionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrInvasionNotFound
		}
		return false, nil, err
	}
	if invasion.Status != models.InvasionPending {
		return false, nil, ErrNotResolvable
	}

	// Equality favors the defender: the attacker needs draw strictly below
	// the frozen index.
	draw := s.Rand() * 100
	attackerWins := draw < invasion.ConquestIndex

	newStatus := models.InvasionWonDefender
	if attackerWins {
		newStatus = models.InvasionWonAttacker
	}

	now := s.Now()
	res := s.DB.Model(&models.Invasion{}).
		Where("id = ? AND status = ?", invasionID, models.InvasionPending).
		Updates(map[string]interface{}{
			"status":      newStatus,
			"resolved_at": now,
		})
	if res.Error != nil {
		return false, nil, fmt.Errorf("flip invasion status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race: another resolver already moved the row.
		return false, nil, ErrNotResolvable
	}

	invasion.Status = newStatus
	invasion.ResolvedAt = &now

	log.Printf("🎲 [INVASION] %s resolved: draw %.2f vs index %.1f → %s",
		invasionID, draw, invasion.ConquestIndex, newStatus)

	if attackerWins {
		if err := s.TransferCity(invasion.CityID, invasion.SeasonID, invasion.AttackerID, invasion.DefenderID); err != nil {
			return true, &invasion, fmt.Errorf("invasion %s won but transfer failed: %w", invasionID, err)
		}
		if err := s.Events.Append(invasion.SeasonID, models.EventCityConquered, invasion.AttackerID,
			&invasion.CityID, nil, "conquered a city"); err != nil {
			return true, &invasion, err
		}
		if err := s.Events.RecordCountryConquestIfComplete(invasion.SeasonID, invasion.AttackerID, invasion.CityID); err != nil {
			return true, &invasion, err
		}
		return true, &invasion, nil
	}

	// Defender held: the attacker forfeits 10% of the power snapshot taken
	// at invasion start, clamped at zero in the ledger.
	penalty := invasion.AttackerPower / 10
	if err := s.Stats.DecrementUserStats(invasion.AttackerID, 0, penalty); err != nil {
		return false, &invasion, fmt.Errorf("apply attacker penalty: %w", err)
	}
	return false, &invasion, nil
}

// TransferCity moves a city to its conqueror: 20% inhabitant bonus, a fresh
// shield, and ledger updates for both players. The ownership UPDATE is
// conditioned on oldOwnerID still holding the row; if another transfer won,
// the caller gets ErrConflict instead of a silent overwrite. Stats follow in
// a fixed order so partial application is detectable from the wrapped error.
func (s *InvasionService) TransferCity(cityID, seasonID, newOwnerID, oldOwnerID string) error {
	var ownership models.CityOwnership
	err := s.DB.First(&ownership, "city_id = ? AND season_id = ?", cityID, seasonID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCityNotOwned
		}
		return err
	}
	if ownership.OwnerID != oldOwnerID {
		return ErrConflict
	}

	inhabitants := ownership.VirtualInhabitants
	bonus := inhabitants / 5
	newInhabitants := inhabitants + bonus

	now := s.Now()
	shieldUntil := now.Add(s.ShieldDuration)
	res := s.DB.Model(&models.CityOwnership{}).
		Where("city_id = ? AND season_id = ? AND owner_id = ?", cityID, seasonID, oldOwnerID).
		Updates(map[string]interface{}{
			"owner_id":            newOwnerID,
			"virtual_inhabitants": newInhabitants,
			"shield_until":        shieldUntil,
			"last_attacked_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("update ownership: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}

	log.Printf("🔄 [TRANSFER] %s → %s: %d inhabitants (+%d bonus), shield until %s",
		oldOwnerID, newOwnerID, newInhabitants, bonus, shieldUntil.Format(time.RFC3339))

	if err := s.Stats.IncrementUserStats(newOwnerID, 1, newInhabitants); err != nil {
		return fmt.Errorf("ownership moved but winner stats not applied: %w", err)
	}
	if err := s.Stats.DecrementUserStats(oldOwnerID, 1, inhabitants); err != nil {
		return fmt.Errorf("ownership moved but loser stats not applied: %w", err)
	}
	return nil
}

// CancelInvasion lets the attacker back out of a still-pending invasion
// within the cancellation window. No ledger or ownership effects.
func (s *InvasionService) CancelInvasion(invasionID, requesterID string) error {
	var invasion models.Invasion
	if err := s.DB.First(&invasion, "id = ?", invasionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvasionNotFound
		}
		return err
	}
	if invasion.AttackerID != requesterID {
		return ErrNotAttacker
	}
	if invasion.Status != models.InvasionPending {
		return ErrNotResolvable
	}
	if s.Now().Sub(invasion.StartedAt) > s.CancelWindow {
		return ErrCancellationExpired
	}

	res := s.DB.Model(&models.Invasion{}).
		Where("id = ? AND status = ?", invasionID, models.InvasionPending).
		Update("status", models.InvasionCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotResolvable
	}
	return nil
}

// ListActiveInvasions returns pending invasions where the player is either
// side, newest first.
func (s *InvasionService) ListActiveInvasions(userID, seasonID string) ([]models.Invasion, error) {
	var invasions []models.Invasion
	err := s.DB.Preload("City").Preload("Attacker").Preload("Defender").
		Where("season_id = ? AND status = ? AND (attacker_id = ? OR defender_id = ?)",
			seasonID, models.InvasionPending, userID, userID).
		Order("started_at DESC").
		Find(&invasions).Error
	if err != nil {
		return nil, err
	}
	return invasions, nil
}

// --- HTTP handlers ---

func (s *InvasionService) StartInvasionHandler(c *fiber.Ctx) error {
	var body struct {
		CityID     string `json:"city_id"`
		SeasonID   string `json:"season_id"`
		DefenderID string `json:"defender_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.CityID == "" || body.SeasonID == "" || body.DefenderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "city_id, season_id and defender_id are required"})
	}
	attackerID, _ := c.Locals("user_id").(string)

	invasion, err := s.StartInvasion(body.CityID, body.SeasonID, attackerID, body.DefenderID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invasion)
}

func (s *InvasionService) ResolveInvasionHandler(c *fiber.Ctx) error {
	won, invasion, err := s.ResolveInvasion(c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"attacker_won": won, "invasion": invasion})
}

func (s *InvasionService) CancelInvasionHandler(c *fiber.Ctx) error {
	requesterID, _ := c.Locals("user_id").(string)
	if err := s.CancelInvasion(c.Params("id"), requesterID); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"status": models.InvasionCancelled})
}

func (s *InvasionService) ListActiveInvasionsHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	seasonID := c.Query("season_id")
	if seasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "season_id is required"})
	}
	invasions, err := s.ListActiveInvasions(userID, seasonID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(invasions)
}
