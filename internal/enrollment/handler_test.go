package enrollment

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/api/apitest"
	"github.com/enrollhub/enrollhub/internal/catalog"
	_ "github.com/enrollhub/enrollhub/testing"
)

const (
	enrollPath = "/api/student/enroll"
	dropPath   = "/api/student/drop"
)

func setup(t *testing.T, username string) (*apitest.Server, *catalog.StudentStore, *Handler) {
	t.Helper()
	srv := apitest.New(t)
	conn := srv.LoginAs(t, username, apitest.StudentPassword)
	store := catalog.NewStudentStore(conn, nil)
	require.NoError(t, store.Load(context.Background()))
	return srv, store, NewHandler(conn, store, nil)
}

func TestEnrollAppliesConfirmedDelta(t *testing.T) {
	srv, store, h := setup(t, "student2")
	before, ok := store.Course(apitest.FlaskCourseID)
	require.True(t, ok)
	require.False(t, before.Enrolled)

	_, err := h.Enroll(context.Background(), apitest.FlaskCourseID)
	require.NoError(t, err)

	after, _ := store.Course(apitest.FlaskCourseID)
	assert.True(t, after.Enrolled)
	assert.Equal(t, before.EnrolledCount+1, after.EnrolledCount)
	assert.Equal(t, srv.EnrolledCount(apitest.FlaskCourseID), after.EnrolledCount)
	for _, c := range store.Available() {
		assert.NotEqual(t, apitest.FlaskCourseID, c.ID)
	}
}

func TestEnrollRejectedLeavesStoreUntouched(t *testing.T) {
	srv, store, h := setup(t, "student2")
	before := store.Snapshot()
	srv.FailNext(enrollPath, apitest.Failure{Status: http.StatusBadRequest, Message: "Course is full"})

	_, err := h.Enroll(context.Background(), apitest.FlaskCourseID)
	require.Error(t, err)
	assert.Equal(t, "Course is full", api.UserMessage(err, api.ActionEnroll))
	assert.Equal(t, before, store.Snapshot())
}

func TestEnrollTransportFailureLeavesStoreUntouched(t *testing.T) {
	srv, store, h := setup(t, "student2")
	before := store.Snapshot()
	srv.Close()

	_, err := h.Enroll(context.Background(), apitest.FlaskCourseID)
	require.ErrorIs(t, err, api.ErrUnavailable)
	assert.Equal(t, "Error enrolling in course", api.UserMessage(err, api.ActionEnroll))
	assert.Equal(t, before, store.Snapshot())
}

func TestEnrollFullCourseRejectedLocally(t *testing.T) {
	srv := apitest.New(t)
	srv.AddCourse(apitest.Course{ID: 20, Name: "Seminar", Capacity: 2, TeacherID: apitest.Teacher2ID})
	srv.Enroll(apitest.Student1ID, 20)
	srv.Enroll(apitest.Student2ID, 20)
	conn := srv.LoginAs(t, "student3", apitest.StudentPassword)
	store := catalog.NewStudentStore(conn, nil)
	require.NoError(t, store.Load(context.Background()))
	h := NewHandler(conn, store, nil)

	_, err := h.Enroll(context.Background(), 20)
	require.ErrorIs(t, err, catalog.ErrCourseFull)
	assert.Zero(t, srv.Calls(enrollPath))
}

func TestDropAppliesConfirmedDelta(t *testing.T) {
	srv, store, h := setup(t, "student1")
	before, _ := store.Course(apitest.PythonCourseID)
	require.NotNil(t, before.Grade)

	_, err := h.Drop(context.Background(), apitest.PythonCourseID)
	require.NoError(t, err)

	after, _ := store.Course(apitest.PythonCourseID)
	assert.False(t, after.Enrolled)
	assert.Equal(t, before.EnrolledCount-1, after.EnrolledCount)
	assert.Nil(t, after.Grade)
	_, graded := srv.Grade(apitest.Student1ID, apitest.PythonCourseID)
	assert.False(t, graded)
	for _, c := range store.Enrolled() {
		assert.NotEqual(t, apitest.PythonCourseID, c.ID)
	}
}

func TestDropRejectedLeavesStoreUntouched(t *testing.T) {
	srv, store, h := setup(t, "student1")
	before := store.Snapshot()
	srv.FailNext(dropPath, apitest.Failure{Status: http.StatusBadRequest})

	_, err := h.Drop(context.Background(), apitest.PythonCourseID)
	require.Error(t, err)
	assert.Equal(t, "Failed to drop course", api.UserMessage(err, api.ActionDrop))
	assert.Equal(t, before, store.Snapshot())
}

func TestDropUnknownCourse(t *testing.T) {
	srv, _, h := setup(t, "student1")

	_, err := h.Drop(context.Background(), 404)
	require.ErrorIs(t, err, catalog.ErrUnknownCourse)
	assert.Zero(t, srv.Calls(dropPath))
}

func TestDropNotEnrolledRejectedLocally(t *testing.T) {
	srv, _, h := setup(t, "student2")

	_, err := h.Drop(context.Background(), apitest.FlaskCourseID)
	require.ErrorIs(t, err, catalog.ErrNotEnrolled)
	assert.Zero(t, srv.Calls(dropPath))
}

// vanishingCatalog passes every pre-check and then holds no course to patch,
// like a store reloaded while the request was in flight.
type vanishingCatalog struct {
	*catalog.StudentStore
}

func (vanishingCatalog) CanEnroll(int64) error { return nil }

func (vanishingCatalog) CanDrop(int64) error { return nil }

func TestConfirmedActionOnMissingCourseSucceeds(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.LoginAs(t, "student2", apitest.StudentPassword)
	store := catalog.NewStudentStore(&emptyListing{}, nil)
	require.NoError(t, store.Load(context.Background()))
	h := NewHandler(conn, vanishingCatalog{store}, nil)

	res, err := h.Enroll(context.Background(), apitest.FlaskCourseID)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 2, srv.EnrolledCount(apitest.FlaskCourseID))
	assert.True(t, store.Stale())

	res, err = h.Drop(context.Background(), apitest.FlaskCourseID)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 1, srv.EnrolledCount(apitest.FlaskCourseID))
}

type emptyListing struct{}

func (emptyListing) StudentCourses(context.Context) (api.StudentCourses, error) {
	return api.StudentCourses{}, nil
}

func TestConcurrentEnrollSharesOneCall(t *testing.T) {
	srv, store, h := setup(t, "student2")
	before, _ := store.Course(apitest.FlaskCourseID)
	release := srv.Gate(enrollPath)
	defer release()

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = h.Enroll(context.Background(), apitest.FlaskCourseID)
	}()
	require.Eventually(t, func() bool { return srv.Calls(enrollPath) == 1 }, time.Second, 5*time.Millisecond)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = h.Enroll(context.Background(), apitest.FlaskCourseID)
	}()
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0].Shared && results[1].Shared)
	assert.Equal(t, 1, srv.Calls(enrollPath))
	after, _ := store.Course(apitest.FlaskCourseID)
	assert.Equal(t, before.EnrolledCount+1, after.EnrolledCount)
}

func TestResponseAfterDisposeIsDiscarded(t *testing.T) {
	srv, store, h := setup(t, "student2")
	release := srv.Gate(enrollPath)
	defer release()

	done := make(chan struct{})
	var (
		res Result
		err error
	)
	go func() {
		defer close(done)
		res, err = h.Enroll(context.Background(), apitest.FlaskCourseID)
	}()
	require.Eventually(t, func() bool { return srv.Calls(enrollPath) == 1 }, time.Second, 5*time.Millisecond)
	store.Dispose()
	release()
	<-done

	require.NoError(t, err)
	assert.True(t, res.Detached)
	assert.Equal(t, 2, srv.EnrolledCount(apitest.FlaskCourseID))
}

func TestCallerGoneStillApplies(t *testing.T) {
	srv, store, h := setup(t, "student2")
	release := srv.Gate(enrollPath)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.Enroll(ctx, apitest.FlaskCourseID)
		done <- err
	}()
	require.Eventually(t, func() bool { return srv.Calls(enrollPath) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	release()

	require.Eventually(t, func() bool {
		c, _ := store.Course(apitest.FlaskCourseID)
		return c.Enrolled
	}, time.Second, 5*time.Millisecond)
}
