package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Domain errors. Validation errors reject an operation before any write;
// conflict errors mean another writer got there first and the caller should
// re-read and retry or abandon.
var (
	ErrNoActiveSeason      = errors.New("no active season")
	ErrCityNotFound        = errors.New("city not found")
	ErrCityNotOwned        = errors.New("city has no owner this season")
	ErrCityAlreadyOwned    = errors.New("city already has an owner this season")
	ErrCityShielded        = errors.New("city has an active shield")
	ErrSelfInvasion        = errors.New("cannot invade your own city")
	ErrNoAttackPower       = errors.New("attacker owns no cities this season")
	ErrDefenderPowerless   = errors.New("city has no inhabitants and cannot be invaded")
	ErrDefenderMismatch    = errors.New("defender no longer owns this city")
	ErrInvasionNotFound    = errors.New("invasion not found")
	ErrInvasionInProgress  = errors.New("city already has a pending invasion")
	ErrNotResolvable       = errors.New("invasion is not pending")
	ErrNotAttacker         = errors.New("only the attacker can cancel an invasion")
	ErrCancellationExpired = errors.New("cancellation window has expired")
	ErrConflict            = errors.New("ownership changed concurrently")
	ErrSeasonNotFound      = errors.New("season not found")
)

// statusForError maps a domain error to an HTTP status for the fiber layer.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrCityNotFound),
		errors.Is(err, ErrInvasionNotFound),
		errors.Is(err, ErrSeasonNotFound),
		errors.Is(err, ErrCityNotOwned):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrDefenderMismatch),
		errors.Is(err, ErrInvasionInProgress),
		errors.Is(err, ErrCityAlreadyOwned),
		errors.Is(err, ErrNotResolvable),
		errors.Is(err, ErrCancellationExpired):
		return fiber.StatusConflict
	case errors.Is(err, ErrNoActiveSeason),
		errors.Is(err, ErrCityShielded),
		errors.Is(err, ErrSelfInvasion),
		errors.Is(err, ErrNoAttackPower),
		errors.Is(err, ErrDefenderPowerless),
		errors.Is(err, ErrNotAttacker):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
}
