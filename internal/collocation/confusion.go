package collocation

import (
	"fmt"

	"github.com/gnssro/collocate/internal/rodb"
)

// Confusion tallies how the rotation method performed against the
// brute-force baseline over a set of occultations.
type Confusion struct {
	TruePositive  int
	FalseNegative int
	FalsePositive int
	TrueNegative  int
}

// ConfusionMatrix compares the rotation matches against the brute-force
// matches over the occultations both strategies were run on. Both lists are
// assumed internally deduplicated by occultation identifier.
func ConfusionMatrix(occs *rodb.OccList, brute, rotation *CollocationList) (Confusion, error) {
	if occs == nil {
		return Confusion{}, fmt.Errorf("occultation list must not be nil: %w", ErrInvalidArgument)
	}
	if brute == nil || brute.Len() == 0 {
		return Confusion{}, fmt.Errorf("brute-force matches must be a non-empty list: %w", ErrInvalidArgument)
	}
	if rotation == nil || rotation.Len() == 0 {
		return Confusion{}, fmt.Errorf("rotation matches must be a non-empty list: %w", ErrInvalidArgument)
	}

	both, err := brute.Intersection(rotation)
	if err != nil {
		return Confusion{}, err
	}

	nTotal := occs.Size()
	nBrute := brute.Len()
	nRotation := rotation.Len()
	nBoth := both.Len()

	return Confusion{
		TruePositive:  nBoth,
		FalseNegative: nBrute - nBoth,
		FalsePositive: nRotation - nBoth,
		TrueNegative:  nTotal - (nBrute + nRotation - nBoth),
	}, nil
}
