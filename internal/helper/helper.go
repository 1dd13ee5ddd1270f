package helper

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// FloorMinute обрезает до начала минуты в локации t.
func FloorMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// FloorDay: полночь того же дня в локации t.
func FloorDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay сравнивает календарные дни в локации a.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// UntilNextMinute: сколько ждать до следующей границы минуты (60 - sec).
func UntilNextMinute(t time.Time) time.Duration {
	return time.Duration(60-t.Second()) * time.Second
}

// ParseClock разбирает "HH:MM" в смещение от полуночи.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// AtClock: день t в момент offset.
func AtClock(t time.Time, offset time.Duration) time.Time {
	return FloorDay(t).Add(offset)
}

// AbsInt: терминал отдаёт цены со знаком изменения ("+10250", "-10200").
func AbsInt(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "+-")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func AbsFloat(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return math.Abs(f), nil
}

// NormCode срезает префикс "A" у кодов из балансовых запросов ("A069500" -> "069500").
func NormCode(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) == 7 && (s[0] == 'A' || s[0] == 'J' || s[0] == 'Q') {
		return s[1:]
	}
	return s
}
