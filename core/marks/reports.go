package marks

import (
	"context"

	"github.com/pkg/errors"
)

// ScheduleCategory distinguishes the kind of assessment a schedule holds.
type ScheduleCategory string

const (
	CategoryTheory   ScheduleCategory = "THEORY"
	CategoryInternal ScheduleCategory = "INTERNAL"
)

type (
	// Distribution summarizes published scores for one subject within a schedule.
	Distribution struct {
		SubjectID string  `json:"subject_id"`
		Count     int     `json:"count"`
		Min       float64 `json:"min"`
		Max       float64 `json:"max"`
		Mean      float64 `json:"mean"`
	}

	// SubjectSplit aggregates a subject's published scores for a section into
	// theory and internal totals, by schedule category.
	SubjectSplit struct {
		SubjectID     string  `json:"subject_id"`
		SectionID     string  `json:"section_id"`
		TheoryCount   int     `json:"theory_count"`
		TheoryTotal   float64 `json:"theory_total"`
		InternalCount int     `json:"internal_count"`
		InternalTotal float64 `json:"internal_total"`
	}

	// Projector derives read-side views from the mark record store. No
	// independent state, no caching: freshness is read-your-writes.
	Projector interface {
		// PublishedMarks returns a group's records, published ones only.
		PublishedMarks(ctx context.Context, key GroupKey) ([]MarkRecord, error)
		// ScheduleDistribution summarizes published scores per subject for a schedule.
		ScheduleDistribution(ctx context.Context, scheduleID string) ([]Distribution, error)
		// SubjectSplit totals a subject's published scores for a section by schedule category.
		SubjectSplit(ctx context.Context, subjectID, sectionID string) (SubjectSplit, error)
	}

	projector struct {
		repo Repository
		reg  ReferenceRegistry
	}
)

var _ Projector = (*projector)(nil)

func NewProjector(repo Repository, reg ReferenceRegistry) Projector {
	return &projector{repo: repo, reg: reg}
}

func (p *projector) PublishedMarks(ctx context.Context, key GroupKey) ([]MarkRecord, error) {
	published := StatusPublished
	records, err := p.repo.FilterRecords(ctx, QueryFilter{
		ScheduleID: key.ScheduleID,
		SubjectID:  key.SubjectID,
		SectionID:  key.SectionID,
		Status:     &published,
	})
	return records, errors.Wrap(err, "filtering published records")
}

func (p *projector) ScheduleDistribution(ctx context.Context, scheduleID string) ([]Distribution, error) {
	published := StatusPublished
	records, err := p.repo.FilterRecords(ctx, QueryFilter{ScheduleID: scheduleID, Status: &published})
	if err != nil {
		return nil, errors.Wrap(err, "filtering published records")
	}

	bySubject := make(map[string]*Distribution)
	order := make([]string, 0)
	for _, rec := range records {
		if !rec.Score.Valid {
			continue
		}
		score := rec.Score.Float64

		dist, ok := bySubject[rec.SubjectID]
		if !ok {
			dist = &Distribution{SubjectID: rec.SubjectID, Min: score, Max: score}
			bySubject[rec.SubjectID] = dist
			order = append(order, rec.SubjectID)
		}
		if score < dist.Min {
			dist.Min = score
		}
		if score > dist.Max {
			dist.Max = score
		}
		dist.Mean += score // running total; divided below
		dist.Count++
	}

	dists := make([]Distribution, 0, len(order))
	for _, subjectID := range order {
		dist := bySubject[subjectID]
		dist.Mean /= float64(dist.Count)
		dists = append(dists, *dist)
	}
	return dists, nil
}

func (p *projector) SubjectSplit(ctx context.Context, subjectID, sectionID string) (SubjectSplit, error) {
	published := StatusPublished
	records, err := p.repo.FilterRecords(ctx, QueryFilter{SubjectID: subjectID, SectionID: sectionID, Status: &published})
	if err != nil {
		return SubjectSplit{}, errors.Wrap(err, "filtering published records")
	}

	split := SubjectSplit{SubjectID: subjectID, SectionID: sectionID}
	categories := make(map[string]ScheduleCategory) // per-call memo; never cached across requests
	for _, rec := range records {
		if !rec.Score.Valid {
			continue
		}
		cat, ok := categories[rec.ScheduleID]
		if !ok {
			cat, err = p.reg.GetScheduleCategory(ctx, rec.ScheduleID)
			if err != nil {
				return SubjectSplit{}, errors.Wrap(err, "getting schedule category")
			}
			categories[rec.ScheduleID] = cat
		}
		switch cat {
		case CategoryTheory:
			split.TheoryCount++
			split.TheoryTotal += rec.Score.Float64
		case CategoryInternal:
			split.InternalCount++
			split.InternalTotal += rec.Score.Float64
		}
	}
	return split, nil
}
