// Package sla resolves the response/resolution time budgets applied to newly
// created service requests.
package sla

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"device-maintenance-backend/internal/model"
)

// Terms is the resolved SLA applied to a request.
type Terms struct {
	Name            string
	ResponseHours   int
	ResolutionHours int
}

// Deadlines computes the response/resolution due timestamps from a creation time.
func (t Terms) Deadlines(from time.Time) (response, resolution time.Time) {
	return from.Add(time.Duration(t.ResponseHours) * time.Hour),
		from.Add(time.Duration(t.ResolutionHours) * time.Hour)
}

// Resolver looks up the SLA terms for a request being created.
type Resolver interface {
	Resolve(ctx context.Context, category, severity, impact, priority string) Terms
}

// gormResolver matches persisted SLA definitions; empty definition fields act
// as wildcards and the most specific match wins. When nothing matches, the
// configured system default applies.
type gormResolver struct {
	db       *gorm.DB
	fallback Terms
}

// NewResolver creates a definition-backed resolver with a system default.
func NewResolver(db *gorm.DB, defaultResponseHours, defaultResolutionHours int) Resolver {
	return &gormResolver{
		db: db,
		fallback: Terms{
			Name:            "system default",
			ResponseHours:   defaultResponseHours,
			ResolutionHours: defaultResolutionHours,
		},
	}
}

func (r *gormResolver) Resolve(ctx context.Context, category, severity, impact, priority string) Terms {
	var defs []model.SLADefinition
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("device_category IN ?", []string{category, ""}).
		Where("severity IN ?", []string{severity, ""}).
		Where("impact IN ?", []string{impact, ""}).
		Where("priority IN ?", []string{priority, ""}).
		Find(&defs).Error
	if err != nil {
		// A resolver failure must not block action generation.
		log.Printf("SLA lookup failed, using system default: %v", err)
		return r.fallback
	}
	if len(defs) == 0 {
		return r.fallback
	}

	best := defs[0]
	bestScore := specificity(&best, category, severity, impact, priority)
	for i := 1; i < len(defs); i++ {
		if score := specificity(&defs[i], category, severity, impact, priority); score > bestScore {
			best, bestScore = defs[i], score
		}
	}
	return Terms{
		Name:            best.Name,
		ResponseHours:   best.ResponseTimeHours,
		ResolutionHours: best.ResolutionTimeHours,
	}
}

// specificity counts the exactly matched fields of a candidate definition.
func specificity(def *model.SLADefinition, category, severity, impact, priority string) int {
	score := 0
	if def.DeviceCategory != "" && def.DeviceCategory == category {
		score++
	}
	if def.Severity != "" && def.Severity == severity {
		score++
	}
	if def.Impact != "" && def.Impact == impact {
		score++
	}
	if def.Priority != "" && def.Priority == priority {
		score++
	}
	return score
}
