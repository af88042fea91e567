package catalog

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
)

// collection paths
const (
	coursesPath     = "courses"
	instructorsPath = "instructors"
	statsPath       = "course_stats"
)

func lessonsPath(courseID string) string     { return coursesPath + "/" + courseID + "/lessons" }
func reviewsPath(courseID string) string     { return coursesPath + "/" + courseID + "/reviews" }
func enrollmentsPath(courseID string) string { return coursesPath + "/" + courseID + "/enrollments" }

// fetchCourse queries the store for one course. A missing document is a
// valid empty result (zero Course), not an error; only transport and
// permission failures propagate.
func fetchCourse(ctx context.Context, ds core.DocumentStore, id string) (Course, error) {
	doc, err := ds.GetDocument(ctx, coursesPath, id)
	if err != nil {
		if err == core.ErrDocNotFound {
			return Course{}, nil
		}
		return Course{}, err
	}
	return docToCourse(doc), nil
}

// fetchLessons returns the course's lessons ordered by their order index.
func fetchLessons(ctx context.Context, ds core.DocumentStore, courseID string) ([]Lesson, error) {
	docs, err := ds.QueryCollection(ctx, lessonsPath(courseID), nil, core.OrderBy("order", true))
	if err != nil {
		return nil, err
	}
	lessons := make([]Lesson, 0, len(docs))
	for _, doc := range docs {
		lessons = append(lessons, docToLesson(doc))
	}
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons, nil
}

func fetchInstructor(ctx context.Context, ds core.DocumentStore, id string) (Instructor, error) {
	doc, err := ds.GetDocument(ctx, instructorsPath, id)
	if err != nil {
		if err == core.ErrDocNotFound {
			return Instructor{}, nil
		}
		return Instructor{}, err
	}
	return docToInstructor(doc), nil
}

func fetchReviews(ctx context.Context, ds core.DocumentStore, courseID string) ([]Review, error) {
	docs, err := ds.QueryCollection(ctx, reviewsPath(courseID), nil, core.OrderBy("created_at", false))
	if err != nil {
		return nil, err
	}
	reviews := make([]Review, 0, len(docs))
	for _, doc := range docs {
		reviews = append(reviews, docToReview(doc, courseID))
	}
	return reviews, nil
}

// outcome classifies one step of a fallback chain.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeNotFound
	outcomeDenied
	outcomeErr
)

func classify(err error) outcome {
	switch err {
	case nil:
		return outcomeOK
	case core.ErrDocNotFound:
		return outcomeNotFound
	case core.ErrPermissionDenied:
		return outcomeDenied
	}
	return outcomeErr
}

// countSource is one strategy for obtaining an enrollment count.
type countSource func(ctx context.Context, ds core.DocumentStore, courseID string) (int, outcome)

// enrollmentCount tries each source in order: live enrollment records
// first, then the public aggregate document, then zero. Permission
// denials are expected while signed out and fall through silently;
// genuine errors are logged but still degrade to the next source rather
// than failing the stats read.
func enrollmentCount(ctx context.Context, ds core.DocumentStore, log core.Logger, courseID string) int {
	sources := []countSource{countFromEnrollments, countFromPublicStats}
	for _, src := range sources {
		n, out := src(ctx, ds, courseID)
		switch out {
		case outcomeOK:
			return n
		case outcomeErr:
			log.Warn("catalog: enrollment count source failed for course "+courseID, nil)
		}
		// denied/not-found: expected without auth; try the next source
	}
	return 0
}

func countFromEnrollments(ctx context.Context, ds core.DocumentStore, courseID string) (int, outcome) {
	docs, err := ds.QueryCollection(ctx, enrollmentsPath(courseID), nil)
	if err != nil {
		return 0, classify(err)
	}
	return len(docs), outcomeOK
}

func countFromPublicStats(ctx context.Context, ds core.DocumentStore, courseID string) (int, outcome) {
	doc, err := ds.GetDocument(ctx, statsPath, courseID)
	if err != nil {
		return 0, classify(err)
	}
	return doc.Int("enrollments"), outcomeOK
}

// fetchStats assembles course stats from the public aggregate document,
// with the enrollment count upgraded to a live count when readable.
// A completely missing aggregate yields zero-valued stats, never an error.
func fetchStats(ctx context.Context, ds core.DocumentStore, log core.Logger, courseID string) (Stats, error) {
	stats := Stats{CourseID: courseID}
	doc, err := ds.GetDocument(ctx, statsPath, courseID)
	switch classify(err) {
	case outcomeOK:
		stats.AverageRating = doc.Float("average_rating")
		stats.ReviewCount = doc.Int("review_count")
		stats.CompletionRate = doc.Float("completion_rate")
	case outcomeNotFound, outcomeDenied:
		// no public aggregate; zeros stand in
	default:
		return Stats{}, err
	}
	stats.Enrollments = enrollmentCount(ctx, ds, log, courseID)
	return stats, nil
}

// document mapping

func docToCourse(doc core.Document) Course {
	return Course{
		ID:           doc.ID,
		Title:        doc.Str("title"),
		Description:  doc.Str("description"),
		Category:     doc.Str("category"),
		Difficulty:   Difficulty(doc.Str("difficulty")),
		Tags:         doc.Strings("tags"),
		ThumbnailURL: doc.Str("thumbnail_url"),
		InstructorID: doc.Str("instructor_id"),
		Pricing: Pricing{
			IsFree: doc.Bool("is_free"),
			Price:  doc.Float("price"),
		},
		PassingScore: doc.Int("passing_score"),
		CreatedAt:    doc.Time("created_at"),
		UpdatedAt:    doc.Time("updated_at"),
	}
}

func docToLesson(doc core.Document) Lesson {
	return Lesson{
		ID:         doc.ID,
		Title:      doc.Str("title"),
		Kind:       LessonKind(doc.Str("kind")),
		ContentRef: doc.Str("content_ref"),
		Duration:   doc.Int("duration"),
		Section:    doc.Str("section"),
		Order:      doc.Int("order"),
	}
}

func docToInstructor(doc core.Document) Instructor {
	links := make(map[string]string)
	if raw, ok := doc.Fields["links"].(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				links[k] = s
			}
		}
	}
	return Instructor{
		ID:          doc.ID,
		Name:        doc.Str("name"),
		Bio:         doc.Str("bio"),
		Credentials: doc.Strings("credentials"),
		Skills:      doc.Strings("skills"),
		Links:       links,
	}
}

func docToReview(doc core.Document, courseID string) Review {
	return Review{
		ID:        doc.ID,
		CourseID:  courseID,
		UserID:    doc.Str("user_id"),
		Author:    doc.Str("author"),
		Rating:    doc.Int("rating"),
		Comment:   doc.Str("comment"),
		CreatedAt: doc.Time("created_at"),
	}
}
