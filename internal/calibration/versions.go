package calibration

import (
	"sort"
	"sync"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// InitialVersion is the identity calibration used before any fit exists
const InitialVersion = "cal-v0"

// VersionRegistry holds the promoted calibration version per sport with its
// segments. Promotion is an explicit pointer swap; readers always see a
// consistent (version, segments) pair.
type VersionRegistry struct {
	mu       sync.RWMutex
	promoted map[models.Sport]promotedCalibration
}

type promotedCalibration struct {
	version  models.CalibrationVersion
	segments map[segmentKey][]models.CalibrationPoint
}

type segmentKey struct {
	marketType models.MarketType
	bucket     string
}

// NewVersionRegistry creates an empty registry; sports without a promoted
// version apply identity calibration under InitialVersion.
func NewVersionRegistry() *VersionRegistry {
	return &VersionRegistry{
		promoted: make(map[models.Sport]promotedCalibration),
	}
}

// Promote swaps the pointer for a sport to a new version with its segments
func (r *VersionRegistry) Promote(version models.CalibrationVersion, segments []models.CalibrationSegment) {
	segMap := make(map[segmentKey][]models.CalibrationPoint, len(segments))
	for _, seg := range segments {
		key := segmentKey{marketType: seg.MarketType, bucket: seg.Bucket}
		points := make([]models.CalibrationPoint, len(seg.Points))
		copy(points, seg.Points)
		sort.Slice(points, func(i, j int) bool { return points[i].Raw < points[j].Raw })
		segMap[key] = points
	}

	r.mu.Lock()
	r.promoted[version.Sport] = promotedCalibration{version: version, segments: segMap}
	r.mu.Unlock()
}

// VersionFor returns the promoted version id for a sport
func (r *VersionRegistry) VersionFor(sport models.Sport) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cal, exists := r.promoted[sport]; exists {
		return cal.version.Version
	}
	return InitialVersion
}

// Apply maps a raw probability through the promoted segment for
// (sport, market, bucket). Sports or segments without a fit pass through
// unchanged.
func (r *VersionRegistry) Apply(sport models.Sport, marketType models.MarketType, bucket string, pRaw float64) float64 {
	r.mu.RLock()
	cal, exists := r.promoted[sport]
	r.mu.RUnlock()

	if !exists {
		return pRaw
	}

	points, exists := cal.segments[segmentKey{marketType: marketType, bucket: bucket}]
	if !exists || len(points) == 0 {
		return pRaw
	}

	return interpolate(points, pRaw)
}

// interpolate evaluates a monotone piecewise-linear calibration map,
// clamping outside the knot range.
func interpolate(points []models.CalibrationPoint, raw float64) float64 {
	if raw <= points[0].Raw {
		return points[0].Calibrated
	}
	if raw >= points[len(points)-1].Raw {
		return points[len(points)-1].Calibrated
	}

	for i := 1; i < len(points); i++ {
		if raw <= points[i].Raw {
			lo, hi := points[i-1], points[i]
			if hi.Raw == lo.Raw {
				return lo.Calibrated
			}
			t := (raw - lo.Raw) / (hi.Raw - lo.Raw)
			return lo.Calibrated + t*(hi.Calibrated-lo.Calibrated)
		}
	}

	return points[len(points)-1].Calibrated
}

// BucketFor assigns a calibration bucket from the raw probability: segments
// are fit separately for favorites and dogs.
func BucketFor(pRaw float64) string {
	if pRaw >= 0.5 {
		return "favorite"
	}
	return "dog"
}
