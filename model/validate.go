package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidServingSize is returned when a serving size is not a finite
// positive number. It matches ErrInvalidInput.
var ErrInvalidServingSize = fmt.Errorf("%w: serving size must be a finite positive number", ErrInvalidInput)

// ParseServingSize parses a user-supplied serving size.
func ParseServingSize(s string) (float64, error) {
	size, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidServingSize, s)
	}
	if err := ValidateServingSize(size); err != nil {
		return 0, err
	}
	return size, nil
}

// ValidateServingSize checks that size is finite and positive.
func ValidateServingSize(size float64) error {
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidServingSize, size)
	}
	return nil
}

// ValidateStars checks that a rating is a whole star value in [1, 5].
func ValidateStars(stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrInvalidInput, stars)
	}
	return nil
}

// errNoTitle is returned by operations addressed by an empty title.
var errNoTitle = errors.New("food item title is required")

// ValidateTitle checks that title is non-empty.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: %v", ErrInvalidInput, errNoTitle)
	}
	return nil
}
