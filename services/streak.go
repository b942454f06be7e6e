package services

import (
	"fmt"
	"time"

	"github.com/cppla/moodbloom/models"
)

// Award is a token grant decided by a rule.
type Award struct {
	Amount int
	Reason string
}

// StreakOutcome is the result of applying one check-in to a streak.
type StreakOutcome struct {
	Streak  models.Streak
	Award   *Award
	Changed bool
}

// NextStreak applies a check-in at now to the current streak. It is pure.
//
// Days are compared by calendar date in now's location: a check-in late on
// one day followed by one early the next is consecutive.
func NextStreak(current models.Streak, now time.Time) StreakOutcome {
	checkedAt := now

	if current.LastCheckIn == nil {
		return StreakOutcome{
			Streak:  models.Streak{Count: 1, LastCheckIn: &checkedAt, PlantLevel: models.PlantSprout},
			Award:   &Award{Amount: 10, Reason: "First check-in"},
			Changed: true,
		}
	}

	switch days := calendarDaysBetween(*current.LastCheckIn, now); {
	case days == 0:
		return StreakOutcome{Streak: current}
	case days == 1:
		count := current.Count + 1
		award := milestoneAward(count)
		return StreakOutcome{
			Streak:  models.Streak{Count: count, LastCheckIn: &checkedAt, PlantLevel: PlantLevelFor(count)},
			Award:   &award,
			Changed: true,
		}
	default:
		return StreakOutcome{
			Streak:  models.Streak{Count: 1, LastCheckIn: &checkedAt, PlantLevel: models.PlantSprout},
			Award:   &Award{Amount: 2, Reason: "Returned for check-in"},
			Changed: true,
		}
	}
}

// PlantLevelFor maps a streak length to its plant tier.
func PlantLevelFor(count int) string {
	switch {
	case count >= 14:
		return models.PlantTree
	case count >= 7:
		return models.PlantFlower
	case count >= 3:
		return models.PlantLeaf
	case count >= 1:
		return models.PlantSprout
	default:
		return models.PlantNone
	}
}

func milestoneAward(count int) Award {
	switch count {
	case 3:
		return Award{Amount: 15, Reason: "3-day streak milestone"}
	case 7:
		return Award{Amount: 25, Reason: "7-day streak milestone"}
	case 14:
		return Award{Amount: 50, Reason: "14-day streak milestone"}
	case 30:
		return Award{Amount: 100, Reason: "30-day streak milestone"}
	default:
		return Award{Amount: 5, Reason: fmt.Sprintf("Day %d streak", count)}
	}
}

// calendarDaysBetween returns the absolute number of calendar days between
// a and b, both read in b's location.
func calendarDaysBetween(a, b time.Time) int {
	loc := b.Location()
	a = a.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(db.Sub(da).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
