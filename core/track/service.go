package track

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/cache"
	"github.com/trezcool/darasa/core/catalog"
)

// Service composes the entity store with remote fetches for per-user
// learning state (progress, notes) and owns the optimistic mutation
// path for progress updates.
type Service struct {
	store   *cache.Store
	policy  cache.Policy
	ds      core.DocumentStore
	log     core.Logger
	catalog *catalog.Service

	mu      sync.Mutex
	pending map[string]*mutation // one in-flight transition per aggregate
}

func NewService(store *cache.Store, policy cache.Policy, ds core.DocumentStore, log core.Logger, catalogSvc *catalog.Service) *Service {
	return &Service{
		store:   store,
		policy:  policy,
		ds:      ds,
		log:     log,
		catalog: catalogSvc,
		pending: make(map[string]*mutation),
	}
}

type (
	ProgressSnapshot struct {
		Progress Progress
		cache.Status
	}

	NoteSnapshot struct {
		Note Note
		cache.Status
	}
)

func (svc *Service) Progress(ctx context.Context, userID, courseID string) ProgressSnapshot {
	key := ProgressKey(userID, courseID)
	v, st := cache.Resolve(svc.store, svc.policy, cache.KindProgress, key, func() (interface{}, error) {
		p, err := fetchProgress(ctx, svc.ds, userID, courseID)
		if err != nil {
			svc.log.Error("track: fetching progress for course "+courseID, err)
			return nil, err
		}
		return p, nil
	})
	snap := ProgressSnapshot{Status: st}
	if p, ok := v.(Progress); ok {
		snap.Progress = p
	}
	return snap
}

func (svc *Service) Note(ctx context.Context, userID, lessonID string) NoteSnapshot {
	key := NoteKey(userID, lessonID)
	v, st := cache.Resolve(svc.store, svc.policy, cache.KindNote, key, func() (interface{}, error) {
		n, err := fetchNote(ctx, svc.ds, userID, lessonID)
		if err != nil {
			svc.log.Error("track: fetching note for lesson "+lessonID, err)
			return nil, err
		}
		return n, nil
	})
	snap := NoteSnapshot{Status: st}
	if n, ok := v.(Note); ok {
		snap.Note = n
	}
	return snap
}

// SaveNote upserts the user's note for a lesson: the note id IS the
// lesson id, so saving twice can only ever touch the same document.
func (svc *Service) SaveNote(ctx context.Context, userID, lessonID string, nn NewNote) (Note, error) {
	if err := nn.Validate(); err != nil {
		return Note{}, err
	}
	note := Note{
		UserID:    userID,
		LessonID:  lessonID,
		Content:   nn.Content,
		UpdatedAt: time.Now().UTC(),
	}
	fields := map[string]interface{}{
		"content":    note.Content,
		"updated_at": note.UpdatedAt,
	}
	if err := svc.ds.SetDocument(ctx, notesPath(userID), lessonID, fields, false); err != nil {
		return Note{}, err
	}
	svc.store.Set(cache.KindNote, NoteKey(userID, lessonID), note)
	return note, nil
}

// SetLastVisited records the lesson the user is on. It is a
// write-behind: the cache is updated immediately, the remote write runs
// in the background and failures are only logged.
//
// Only an already-cached progress is overlaid; an unseeded partition is
// left unstamped so the next read still reconciles with the remote
// store instead of trusting a zero stand-in for the whole session. The
// marker itself is a field-level merge and reaches the server either way.
func (svc *Service) SetLastVisited(ctx context.Context, userID, courseID, lessonID string) {
	key := ProgressKey(userID, courseID)
	now := time.Now().UTC()
	if v, ok := svc.store.Get(cache.KindProgress, key); ok {
		if p, ok := v.(Progress); ok {
			p.LastVisited = lessonID
			p.UpdatedAt = now
			svc.store.Set(cache.KindProgress, key, p)
		}
	}

	go func() {
		fields := map[string]interface{}{
			"last_visited": lessonID,
			"updated_at":   now,
		}
		if err := svc.ds.SetDocument(ctx, progressPath(userID), courseID, fields, true /* merge */); err != nil {
			svc.log.Warn("track: persisting last-visited lesson failed", err)
		}
	}()
}

// ResetProgress clears the user's completed set for a course. This is
// the explicit reset; it is written through synchronously.
func (svc *Service) ResetProgress(ctx context.Context, userID, courseID string) (Progress, error) {
	key := ProgressKey(userID, courseID)

	svc.mu.Lock()
	if m, ok := svc.pending[key]; ok && m.state == stateOptimistic {
		svc.mu.Unlock()
		return Progress{}, ErrMutationPending
	}
	svc.mu.Unlock()

	base, err := svc.authoritativeProgress(ctx, userID, courseID)
	if err != nil {
		return Progress{}, err
	}
	p := base.reset()
	p.UpdatedAt = time.Now().UTC()
	if err := svc.ds.SetDocument(ctx, progressPath(userID), courseID, progressFields(p), false); err != nil {
		return Progress{}, err
	}
	svc.store.Set(cache.KindProgress, key, p)
	return p, nil
}

// authoritativeProgress returns the cached progress, fetching it from
// the remote store when the session holds none yet. Writes must never be
// computed from a guessed base: a zero-valued stand-in would clobber the
// server's completed set on the next merge write.
func (svc *Service) authoritativeProgress(ctx context.Context, userID, courseID string) (Progress, error) {
	key := ProgressKey(userID, courseID)
	if v, ok := svc.store.Get(cache.KindProgress, key); ok {
		if p, ok := v.(Progress); ok {
			return p, nil
		}
	}
	p, err := fetchProgress(ctx, svc.ds, userID, courseID)
	if err != nil {
		return Progress{}, err
	}
	if p.Total == 0 {
		if v, ok := svc.store.Get(cache.KindLessons, courseID); ok {
			if lessons, ok := v.([]catalog.Lesson); ok {
				p.Total = len(lessons)
				p.Percentage = Percentage(len(p.Completed), p.Total)
			}
		}
	}
	svc.store.Set(cache.KindProgress, key, p)
	return p, nil
}

// LessonPageSnapshot is the composite read backing the lesson player:
// course, lessons, the user's progress and note, and the instructor.
// IsLoading is the OR of the constituent reads, IsCached their AND.
type LessonPageSnapshot struct {
	Course        catalog.Course
	Lessons       []catalog.Lesson
	Sections      []catalog.Section
	CurrentLesson catalog.Lesson
	LessonFound   bool
	Progress      Progress
	Note          Note
	Instructor    catalog.Instructor
	IsLoading     bool
	IsCached      bool
	Err           error
}

func (svc *Service) LessonPage(ctx context.Context, userID, courseID, lessonID string) LessonPageSnapshot {
	crs := svc.catalog.Course(ctx, courseID)
	lessons := svc.catalog.Lessons(ctx, courseID)
	prog := svc.Progress(ctx, userID, courseID)
	note := svc.Note(ctx, userID, lessonID)

	var ins catalog.InstructorSnapshot
	if crs.Course.InstructorID != "" {
		ins = svc.catalog.Instructor(ctx, crs.Course.InstructorID)
	} else {
		// the instructor read can only start once the course has resolved;
		// a resolved course without an instructor counts as cached so the
		// page can settle
		ins.IsLoading = crs.IsLoading
		ins.IsCached = !crs.IsLoading
	}

	page := LessonPageSnapshot{
		Course:     crs.Course,
		Lessons:    lessons.Lessons,
		Sections:   catalog.GroupSections(lessons.Lessons),
		Progress:   prog.Progress,
		Note:       note.Note,
		Instructor: ins.Instructor,
		IsLoading:  crs.IsLoading || lessons.IsLoading || prog.IsLoading || note.IsLoading || ins.IsLoading,
		IsCached:   crs.IsCached && lessons.IsCached && prog.IsCached && note.IsCached && ins.IsCached,
	}
	for _, err := range []error{crs.Err, lessons.Err, prog.Err, note.Err, ins.Err} {
		if err != nil {
			page.Err = err
			break
		}
	}
	for _, l := range lessons.Lessons {
		if l.ID == lessonID {
			page.CurrentLesson = l
			page.LessonFound = true
			break
		}
	}
	return page
}
