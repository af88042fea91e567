package catalog

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/cache"
)

// Service composes the entity store with remote fetches for catalog
// entities. Reads return immediately with the best available value; a
// required fetch runs in the background and lands in the store, which
// notifies subscribers. Hand reads a session-scoped context: in-flight
// fetches are not cancelled when one consumer goes away.
type Service struct {
	store  *cache.Store
	policy cache.Policy
	ds     core.DocumentStore
	log    core.Logger
}

func NewService(store *cache.Store, policy cache.Policy, ds core.DocumentStore, log core.Logger) *Service {
	return &Service{store: store, policy: policy, ds: ds, log: log}
}

// Store exposes the underlying entity store for subscriptions.
func (svc *Service) Store() *cache.Store { return svc.store }

type (
	CourseSnapshot struct {
		Course Course
		cache.Status
	}

	LessonsSnapshot struct {
		Lessons []Lesson
		cache.Status
	}

	InstructorSnapshot struct {
		Instructor Instructor
		cache.Status
	}

	StatsSnapshot struct {
		Stats Stats
		cache.Status
	}

	ReviewsSnapshot struct {
		Reviews []Review
		cache.Status
	}
)

// Found reports whether the snapshot holds an actual course (as opposed
// to the valid-but-empty result of a not-found fetch).
func (s CourseSnapshot) Found() bool { return s.Course.ID != "" }

func (s InstructorSnapshot) Found() bool { return s.Instructor.ID != "" }

func (svc *Service) Course(ctx context.Context, id string) CourseSnapshot {
	v, st := cache.Resolve(svc.store, svc.policy, cache.KindCourse, id, func() (interface{}, error) {
		crs, err := fetchCourse(ctx, svc.ds, id)
		if err != nil {
			svc.log.Error("catalog: fetching course "+id, err)
			return nil, err
		}
		return crs, nil
	})
	snap := CourseSnapshot{Status: st}
	if crs, ok := v.(Course); ok {
		snap.Course = crs
	}
	return snap
}

func (svc *Service) Lessons(ctx context.Context, courseID string) LessonsSnapshot {
	v, st := cache.Resolve(svc.store, svc.policy, cache.KindLessons, courseID, func() (interface{}, error) {
		lessons, err := fetchLessons(ctx, svc.ds, courseID)
		if err != nil {
			svc.log.Error("catalog: fetching lessons for course "+courseID, err)
			return nil, err
		}
		return lessons, nil
	})
	snap := LessonsSnapshot{Status: st}
	if lessons, ok := v.([]Lesson); ok {
		snap.Lessons = lessons
	}
	return snap
}

func (svc *Service) Instructor(ctx context.Context, id string) InstructorSnapshot {
	v, st := cache.Resolve(svc.store, svc.policy, cache.KindInstructor, id, func() (interface{}, error) {
		ins, err := fetchInstructor(ctx, svc.ds, id)
		if err != nil {
			svc.log.Error("catalog: fetching instructor "+id, err)
			return nil, err
		}
		return ins, nil
	})
	snap := InstructorSnapshot{Status: st}
	if ins, ok := v.(Instructor); ok {
		snap.Instructor = ins
	}
	return snap
}

// Stats serves the aggregate dashboard numbers. These expire on a short
// TTL (unlike course content) and degrade to public or zero values when
// enrollment records are not readable.
func (svc *Service) Stats(ctx context.Context, courseID string) StatsSnapshot {
	v, st := cache.Resolve(svc.store, svc.policy, cache.KindStats, courseID, func() (interface{}, error) {
		stats, err := fetchStats(ctx, svc.ds, svc.log, courseID)
		if err != nil {
			svc.log.Error("catalog: fetching stats for course "+courseID, err)
			return nil, err
		}
		return stats, nil
	})
	snap := StatsSnapshot{Status: st}
	if stats, ok := v.(Stats); ok {
		snap.Stats = stats
	}
	return snap
}

func (svc *Service) Reviews(ctx context.Context, courseID string) ReviewsSnapshot {
	v, st := cache.Resolve(svc.store, svc.policy, cache.KindReviews, courseID, func() (interface{}, error) {
		reviews, err := fetchReviews(ctx, svc.ds, courseID)
		if err != nil {
			svc.log.Error("catalog: fetching reviews for course "+courseID, err)
			return nil, err
		}
		return reviews, nil
	})
	snap := ReviewsSnapshot{Status: st}
	if reviews, ok := v.([]Review); ok {
		snap.Reviews = reviews
	}
	return snap
}

// instructor tooling

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if err := nc.Validate(); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	crs := Course{
		Title:        nc.Title,
		Description:  nc.Description,
		Category:     nc.Category,
		Difficulty:   nc.Difficulty,
		Tags:         nc.Tags,
		ThumbnailURL: nc.ThumbnailURL,
		InstructorID: nc.InstructorID,
		Pricing:      Pricing{IsFree: nc.IsFree, Price: nc.Price},
		PassingScore: nc.PassingScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := svc.ds.AddDocument(ctx, coursesPath, courseFields(crs))
	if err != nil {
		return Course{}, err
	}
	crs.ID = id
	svc.store.Set(cache.KindCourse, id, crs)
	return crs, nil
}

func (svc *Service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	if err := uc.Validate(); err != nil {
		return Course{}, err
	}
	fields := map[string]interface{}{"updated_at": time.Now().UTC()}
	if uc.Title != "" {
		fields["title"] = uc.Title
	}
	if uc.Description != "" {
		fields["description"] = uc.Description
	}
	if uc.Category != "" {
		fields["category"] = uc.Category
	}
	if uc.Difficulty != "" {
		fields["difficulty"] = string(uc.Difficulty)
	}
	if uc.Tags != nil {
		fields["tags"] = uc.Tags
	}
	if uc.ThumbnailURL != "" {
		fields["thumbnail_url"] = uc.ThumbnailURL
	}
	if uc.IsFree != nil {
		fields["is_free"] = *uc.IsFree
	}
	if uc.Price != nil {
		fields["price"] = *uc.Price
	}
	if uc.PassingScore != nil {
		fields["passing_score"] = *uc.PassingScore
	}
	if err := svc.ds.SetDocument(ctx, coursesPath, id, fields, true /* merge */); err != nil {
		return Course{}, err
	}
	crs, err := fetchCourse(ctx, svc.ds, id)
	if err != nil {
		return Course{}, err
	}
	svc.store.Set(cache.KindCourse, id, crs)
	return crs, nil
}

// SubmitReview is a user-initiated write: failures are returned to the
// caller for a visible notification instead of being degraded silently.
// A successful write stamps the course's reviews and stats partitions
// stale so the next read refetches them.
func (svc *Service) SubmitReview(ctx context.Context, courseID string, who core.Identity, nr NewReview) (Review, error) {
	if err := nr.Validate(); err != nil {
		return Review{}, err
	}
	now := time.Now().UTC()
	fields := map[string]interface{}{
		"user_id":    who.UID,
		"author":     who.Name,
		"rating":     nr.Rating,
		"comment":    nr.Comment,
		"created_at": now,
	}
	id, err := svc.ds.AddDocument(ctx, reviewsPath(courseID), fields)
	if err != nil {
		return Review{}, err
	}
	svc.store.Invalidate(cache.KindReviews, courseID)
	svc.store.Invalidate(cache.KindStats, courseID)
	return Review{
		ID:        id,
		CourseID:  courseID,
		UserID:    who.UID,
		Author:    who.Name,
		Rating:    nr.Rating,
		Comment:   nr.Comment,
		CreatedAt: now,
	}, nil
}

func courseFields(crs Course) map[string]interface{} {
	return map[string]interface{}{
		"title":         crs.Title,
		"description":   crs.Description,
		"category":      crs.Category,
		"difficulty":    string(crs.Difficulty),
		"tags":          crs.Tags,
		"thumbnail_url": crs.ThumbnailURL,
		"instructor_id": crs.InstructorID,
		"is_free":       crs.Pricing.IsFree,
		"price":         crs.Pricing.Price,
		"passing_score": crs.PassingScore,
		"created_at":    crs.CreatedAt,
		"updated_at":    crs.UpdatedAt,
	}
}
