package catalog

import (
	"errors"
	"time"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrPriceRequired = errors.New("a price greater than zero is required for paid courses")
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type LessonKind string

const (
	LessonVideo LessonKind = "video"
	LessonText  LessonKind = "text"
)

// Pricing is free-or-paid; paid courses must carry a positive price.
type Pricing struct {
	IsFree bool    `json:"is_free"`
	Price  float64 `json:"price"`
}

type Course struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Difficulty   Difficulty `json:"difficulty"`
	Tags         []string   `json:"tags"` // ordered
	ThumbnailURL string     `json:"thumbnail_url"`
	InstructorID string     `json:"instructor_id"`
	Pricing      Pricing    `json:"pricing"`
	PassingScore int        `json:"passing_score"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
}

type Lesson struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Kind       LessonKind `json:"kind"`
	ContentRef string     `json:"content_ref"`
	Duration   int        `json:"duration"` // minutes
	Section    string     `json:"section"`
	Order      int        `json:"order"`
}

// Section groups consecutive lessons under one label.
type Section struct {
	Label   string   `json:"label"`
	Lessons []Lesson `json:"lessons"`
}

// GroupSections splits an ordered lesson list into sections, preserving
// the first-seen order of section labels. Unlabelled lessons fall into a
// section with an empty label.
func GroupSections(lessons []Lesson) []Section {
	var sections []Section
	index := make(map[string]int)
	for _, l := range lessons {
		i, ok := index[l.Section]
		if !ok {
			i = len(sections)
			index[l.Section] = i
			sections = append(sections, Section{Label: l.Section})
		}
		sections[i].Lessons = append(sections[i].Lessons, l)
	}
	return sections
}

type Instructor struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Bio         string            `json:"bio"`
	Credentials []string          `json:"credentials"`
	Skills      []string          `json:"skills"`
	Links       map[string]string `json:"links"`
}

// Stats are aggregated from enrollment and review records on demand;
// they lag real time by up to the stats cache TTL.
type Stats struct {
	CourseID       string  `json:"course_id"`
	Enrollments    int     `json:"enrollments"`
	AverageRating  float64 `json:"average_rating"`
	ReviewCount    int     `json:"review_count"`
	CompletionRate float64 `json:"completion_rate"`
}

type Review struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	UserID    string    `json:"user_id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string     `json:"title" validate:"required"`
	Description  string     `json:"description"`
	Category     string     `json:"category" validate:"required"`
	Difficulty   Difficulty `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	Tags         []string   `json:"tags"`
	ThumbnailURL string     `json:"thumbnail_url" validate:"omitempty,url"`
	InstructorID string     `json:"instructor_id" validate:"required"`
	IsFree       bool       `json:"is_free"`
	Price        float64    `json:"price"`
	PassingScore int        `json:"passing_score" validate:"min=0,max=100"`
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category, true /* lower */)

	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	if !nc.IsFree && nc.Price <= 0 {
		return core.NewValidationError(ErrPriceRequired, core.FieldError{Field: "price", Error: ErrPriceRequired.Error()})
	}
	return nil
}

// UpdateCourse defines what information may be provided to modify an
// existing Course. The course id itself is immutable.
type UpdateCourse struct {
	Title        string     `json:"title" validate:"omitempty"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Difficulty   Difficulty `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Tags         []string   `json:"tags"`
	ThumbnailURL string     `json:"thumbnail_url" validate:"omitempty,url"`
	IsFree       *bool      `json:"is_free"`
	Price        *float64   `json:"price"`
	PassingScore *int       `json:"passing_score"`
}

func (uc *UpdateCourse) Validate() error {
	uc.Title = core.CleanString(uc.Title)
	uc.Description = core.CleanString(uc.Description)
	uc.Category = core.CleanString(uc.Category, true /* lower */)

	if err := core.Validate.Struct(uc); err != nil {
		return err
	}
	if uc.IsFree != nil && !*uc.IsFree && (uc.Price == nil || *uc.Price <= 0) {
		return core.NewValidationError(ErrPriceRequired, core.FieldError{Field: "price", Error: ErrPriceRequired.Error()})
	}
	if uc.PassingScore != nil && (*uc.PassingScore < 0 || *uc.PassingScore > 100) {
		return core.NewValidationError(errors.New("passing score must be between 0 and 100"),
			core.FieldError{Field: "passing_score", Error: "must be between 0 and 100"})
	}
	return nil
}

// NewReview contains information needed to submit a course review.
type NewReview struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (nr *NewReview) Validate() error {
	nr.Comment = core.CleanString(nr.Comment)
	return core.Validate.Struct(nr)
}
