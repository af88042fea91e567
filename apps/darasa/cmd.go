package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/cache"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/track"
)

var (
	errHelp    = errors.New("help provided")
	errTimeout = errors.New("timed out waiting for the remote store")
	errSignIn  = errors.New("sign in first: set DARASA_SESSION_TOKEN")
)

const resolveTimeout = 10 * time.Second

type commandLine struct {
	sess       core.Session
	store      *cache.Store
	catalogSvc *catalog.Service
	trackSvc   *track.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  course -id ID                              - show a course with its stats")
	fmt.Println("  lesson -course ID -lesson ID               - show the lesson page")
	fmt.Println("  complete -course ID -lesson ID             - mark a lesson complete")
	fmt.Println("  note -lesson ID -content TEXT              - save a note on a lesson")
	fmt.Println("  reset -course ID                           - reset course progress")
	fmt.Println("  review -course ID -rating N [-comment TEXT] - submit a course review")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	courseCmd := flag.NewFlagSet("course", flag.ExitOnError)
	courseID := courseCmd.String("id", "", "The course id.")

	lessonCmd := flag.NewFlagSet("lesson", flag.ExitOnError)
	lessonCourse := lessonCmd.String("course", "", "The course id.")
	lessonID := lessonCmd.String("lesson", "", "The lesson id.")

	completeCmd := flag.NewFlagSet("complete", flag.ExitOnError)
	completeCourse := completeCmd.String("course", "", "The course id.")
	completeLesson := completeCmd.String("lesson", "", "The lesson id.")

	noteCmd := flag.NewFlagSet("note", flag.ExitOnError)
	noteLesson := noteCmd.String("lesson", "", "The lesson id.")
	noteContent := noteCmd.String("content", "", "The note content.")

	resetCmd := flag.NewFlagSet("reset", flag.ExitOnError)
	resetCourse := resetCmd.String("course", "", "The course id.")

	reviewCmd := flag.NewFlagSet("review", flag.ExitOnError)
	reviewCourse := reviewCmd.String("course", "", "The course id.")
	reviewRating := reviewCmd.Int("rating", 0, "The rating, 1 to 5.")
	reviewComment := reviewCmd.String("comment", "", "An optional comment.")

	switch args[1] {
	case "course":
		if err := courseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *courseID == "" {
			courseCmd.Usage()
			return errHelp
		}
		return cli.showCourse(*courseID)
	case "lesson":
		if err := lessonCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *lessonCourse == "" || *lessonID == "" {
			lessonCmd.Usage()
			return errHelp
		}
		return cli.showLessonPage(*lessonCourse, *lessonID)
	case "complete":
		if err := completeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *completeCourse == "" || *completeLesson == "" {
			completeCmd.Usage()
			return errHelp
		}
		return cli.completeLesson(*completeCourse, *completeLesson)
	case "note":
		if err := noteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *noteLesson == "" {
			noteCmd.Usage()
			return errHelp
		}
		return cli.saveNote(*noteLesson, *noteContent)
	case "reset":
		if err := resetCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetCourse == "" {
			resetCmd.Usage()
			return errHelp
		}
		return cli.resetProgress(*resetCourse)
	case "review":
		if err := reviewCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reviewCourse == "" {
			reviewCmd.Usage()
			return errHelp
		}
		return cli.submitReview(*reviewCourse, *reviewRating, *reviewComment)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) requireAuth() error {
	if !cli.sess.Authenticated() {
		return errSignIn
	}
	return nil
}

func (cli *commandLine) showCourse(id string) error {
	ctx := context.Background()

	ch, cancel := cli.store.Subscribe(cache.KindCourse, id)
	defer cancel()
	var crs catalog.CourseSnapshot
	for {
		crs = cli.catalogSvc.Course(ctx, id)
		if !crs.IsLoading {
			break
		}
		if err := await(ch); err != nil {
			return err
		}
	}
	if crs.Err != nil {
		return crs.Err
	}
	if !crs.Found() {
		return fmt.Errorf("course %q not found", id)
	}

	stch, stcancel := cli.store.Subscribe(cache.KindStats, id)
	defer stcancel()
	var stats catalog.StatsSnapshot
	for {
		stats = cli.catalogSvc.Stats(ctx, id)
		if !stats.IsLoading {
			break
		}
		if err := await(stch); err != nil {
			return err
		}
	}

	fmt.Printf("%s (%s, %s)\n", crs.Course.Title, crs.Course.Category, crs.Course.Difficulty)
	fmt.Println(crs.Course.Description)
	fmt.Printf("enrollments: %d  rating: %.1f (%d reviews)  completion: %.0f%%\n",
		stats.Stats.Enrollments, stats.Stats.AverageRating, stats.Stats.ReviewCount, stats.Stats.CompletionRate*100)
	return nil
}

func (cli *commandLine) showLessonPage(courseID, lessonID string) error {
	if err := cli.requireAuth(); err != nil {
		return err
	}
	ctx := context.Background()
	uid := cli.sess.Identity.UID

	crsCh, crsCancel := cli.store.Subscribe(cache.KindCourse, courseID)
	defer crsCancel()
	lesCh, lesCancel := cli.store.Subscribe(cache.KindLessons, courseID)
	defer lesCancel()
	prgCh, prgCancel := cli.store.Subscribe(cache.KindProgress, track.ProgressKey(uid, courseID))
	defer prgCancel()
	noteCh, noteCancel := cli.store.Subscribe(cache.KindNote, track.NoteKey(uid, lessonID))
	defer noteCancel()

	// the instructor partition key is only known once the course resolves;
	// a nil channel blocks in the select until then
	var insCh <-chan struct{}

	deadline := time.After(resolveTimeout)
	page := cli.trackSvc.LessonPage(ctx, uid, courseID, lessonID)
	for page.IsLoading {
		if insCh == nil && page.Course.InstructorID != "" {
			var insCancel func()
			insCh, insCancel = cli.store.Subscribe(cache.KindInstructor, page.Course.InstructorID)
			defer insCancel()
			// re-read right away in case the instructor resolved before
			// the subscription was registered
			page = cli.trackSvc.LessonPage(ctx, uid, courseID, lessonID)
			continue
		}
		select {
		case <-crsCh:
		case <-lesCh:
		case <-prgCh:
		case <-noteCh:
		case <-insCh:
		case <-deadline:
			return errTimeout
		}
		page = cli.trackSvc.LessonPage(ctx, uid, courseID, lessonID)
	}
	if page.Err != nil {
		return page.Err
	}
	if !page.LessonFound {
		return fmt.Errorf("lesson %q not found in course %q", lessonID, courseID)
	}

	fmt.Printf("%s > %s\n", page.Course.Title, page.CurrentLesson.Title)
	if page.Instructor.Name != "" {
		fmt.Printf("by %s\n", page.Instructor.Name)
	}
	for _, sec := range page.Sections {
		fmt.Println(sec.Label)
		for _, l := range sec.Lessons {
			mark := " "
			if page.Progress.IsCompleted(l.ID) {
				mark = "x"
			}
			fmt.Printf("  [%s] %s (%dmin)\n", mark, l.Title, l.Duration)
		}
	}
	fmt.Printf("progress: %d%%\n", page.Progress.Percentage)
	if page.Note.Content != "" {
		fmt.Printf("note: %s\n", page.Note.Content)
	}

	cli.trackSvc.SetLastVisited(ctx, uid, courseID, lessonID)
	return nil
}

func (cli *commandLine) completeLesson(courseID, lessonID string) error {
	if err := cli.requireAuth(); err != nil {
		return err
	}
	ctx := context.Background()

	p, done, err := cli.trackSvc.MarkLessonComplete(ctx, cli.sess.Identity.UID, courseID, lessonID)
	if err != nil {
		return err
	}
	fmt.Printf("progress: %d%% (saving...)\n", p.Percentage)
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(resolveTimeout):
		return errTimeout
	}
	fmt.Println("saved")
	return nil
}

func (cli *commandLine) saveNote(lessonID, content string) error {
	if err := cli.requireAuth(); err != nil {
		return err
	}
	note, err := cli.trackSvc.SaveNote(context.Background(), cli.sess.Identity.UID, lessonID, track.NewNote{Content: content})
	if err != nil {
		return err
	}
	fmt.Printf("note saved for lesson %s (%d chars)\n", note.LessonID, len(note.Content))
	return nil
}

func (cli *commandLine) resetProgress(courseID string) error {
	if err := cli.requireAuth(); err != nil {
		return err
	}
	p, err := cli.trackSvc.ResetProgress(context.Background(), cli.sess.Identity.UID, courseID)
	if err != nil {
		return err
	}
	fmt.Printf("progress reset to %d%%\n", p.Percentage)
	return nil
}

func (cli *commandLine) submitReview(courseID string, rating int, comment string) error {
	if err := cli.requireAuth(); err != nil {
		return err
	}
	rev, err := cli.catalogSvc.SubmitReview(context.Background(), courseID, cli.sess.Identity,
		catalog.NewReview{Rating: rating, Comment: comment})
	if err != nil {
		return err
	}
	fmt.Printf("review %s submitted\n", rev.ID)
	return nil
}

func await(ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-time.After(resolveTimeout):
		return errTimeout
	}
}
