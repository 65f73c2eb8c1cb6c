package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"quotecast-service/internal/domain/entity"
)

// TripDays computes the trip day count as ceil((end - start) / 1 day)
func TripDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// AverageAge computes floor(mean(ages)) over the passenger list
func AverageAge(passengers []entity.Passenger) int {
	if len(passengers) == 0 {
		return 0
	}
	sum := 0
	for _, p := range passengers {
		sum += p.Age
	}
	return sum / len(passengers)
}

// AgeGroupFor buckets an average age into the coarse cache-key label
func AgeGroupFor(age int) entity.AgeGroup {
	switch {
	case age < 18:
		return entity.AgeGroupMinor
	case age < 30:
		return entity.AgeGroupYoung
	case age < 60:
		return entity.AgeGroupAdult
	default:
		return entity.AgeGroupSenior
	}
}

// ParseLocaleDecimal converts a comma-decimal string like "1.234,56" to a
// float by stripping thousands separators and converting the decimal comma.
// Plain dot-decimal input ("1234.56") is accepted unchanged.
func ParseLocaleDecimal(value string) (float64, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("empty decimal value")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", value, err)
	}
	return parsed, nil
}
