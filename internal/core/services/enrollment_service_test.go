package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/core/domain"
)

func TestCreateDirectEnrollment_PaidCourseStartsPending(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "pending@test.com")
	course := seedCourse(t, db, "Algebra", 500)

	enrollment, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID:   student.ID,
		CourseID:    course.ID,
		PhoneNumber: "01001234567",
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.PaymentPending), enrollment.PaymentStatus)
	assert.Equal(t, 500.0, enrollment.Price)
	assert.False(t, enrollment.IsPackage)
	require.NotNil(t, enrollment.CourseID)
	assert.Equal(t, course.ID, *enrollment.CourseID)
}

func TestCreateDirectEnrollment_FreeCourseActivatesImmediately(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "free@test.com")
	course := seedFreeCourse(t, db, "Intro")

	// A client-sent price must not stick to a free course.
	requested := 250.0
	enrollment, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID:      student.ID,
		CourseID:       course.ID,
		PhoneNumber:    "01001234567",
		RequestedPrice: &requested,
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.PaymentPaid), enrollment.PaymentStatus)
	assert.Equal(t, 0.0, enrollment.Price)

	access, err := svc.ResolveCourseAccess(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, access.Granted)
	assert.Equal(t, domain.AccessDirect, access.Via)
}

func TestCreateDirectEnrollment_RequestedPriceOverridesCatalog(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "discount@test.com")
	course := seedCourse(t, db, "Geometry", 400)

	requested := 300.0
	enrollment, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID:      student.ID,
		CourseID:       course.ID,
		PhoneNumber:    "01001234567",
		RequestedPrice: &requested,
	})
	require.NoError(t, err)
	assert.Equal(t, 300.0, enrollment.Price)
}

func TestCreateDirectEnrollment_DuplicateRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "dup@test.com")
	course := seedCourse(t, db, "Physics", 600)

	input := &DirectEnrollmentInput{
		StudentID:   student.ID,
		CourseID:    course.ID,
		PhoneNumber: "01001234567",
	}
	first, err := svc.CreateDirectEnrollment(ctx, input)
	require.NoError(t, err)

	// A failed first attempt still blocks a second insert; recovery goes
	// through the status-update path.
	_, err = svc.UpdatePaymentStatus(ctx, first.ID, domain.PaymentFailed, domain.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.CreateDirectEnrollment(ctx, input)
	assert.ErrorIs(t, err, domain.ErrDuplicateEnrollment)
}

func TestCreateDirectEnrollment_BannedStudentRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "banned@test.com")
	course := seedCourse(t, db, "Chemistry", 350)
	require.NoError(t, db.Model(student).Updates(map[string]interface{}{
		"is_banned":  true,
		"ban_reason": "chargeback abuse",
	}).Error)

	_, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID:   student.ID,
		CourseID:    course.ID,
		PhoneNumber: "01001234567",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserBanned)

	var banned *domain.BannedError
	require.True(t, errors.As(err, &banned))
	assert.Equal(t, "chargeback abuse", banned.Reason)
}

func TestCreateDirectEnrollment_UnknownCourse(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)

	student := seedStudent(t, db, "nocourse@test.com")

	_, err := svc.CreateDirectEnrollment(context.Background(), &DirectEnrollmentInput{
		StudentID:   student.ID,
		CourseID:    9999,
		PhoneNumber: "01001234567",
	})
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestCreatePackageEnrollment_PendingAtBundlePrice(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "bundle@test.com")
	c1 := seedCourse(t, db, "Algebra", 200)
	c2 := seedCourse(t, db, "Geometry", 250)
	pkg := seedPackage(t, db, "Math Bundle", 300, c1, c2)

	enrollment, err := svc.CreatePackageEnrollment(ctx, &PackageEnrollmentInput{
		StudentID:   student.ID,
		PackageID:   pkg.ID,
		PhoneNumber: "01001234567",
	})
	require.NoError(t, err)

	assert.True(t, enrollment.IsPackage)
	assert.Equal(t, string(domain.PaymentPending), enrollment.PaymentStatus)
	assert.Equal(t, 300.0, enrollment.Price)

	// Pending package purchase unlocks nothing yet.
	access, err := svc.ResolveCourseAccess(ctx, student.ID, c1.ID)
	require.NoError(t, err)
	assert.False(t, access.Granted)

	_, err = svc.CreatePackageEnrollment(ctx, &PackageEnrollmentInput{
		StudentID:   student.ID,
		PackageID:   pkg.ID,
		PhoneNumber: "01001234567",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEnrollment)
}

func TestResolveCourseAccess_ThroughPaidPackage(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "pkgaccess@test.com")
	c1 := seedCourse(t, db, "Algebra", 200)
	c2 := seedCourse(t, db, "Geometry", 250)
	outside := seedCourse(t, db, "Biology", 150)
	pkg := seedPackage(t, db, "Math Bundle", 300, c1, c2)

	enrollment, err := svc.CreatePackageEnrollment(ctx, &PackageEnrollmentInput{
		StudentID:   student.ID,
		PackageID:   pkg.ID,
		PhoneNumber: "01001234567",
	})
	require.NoError(t, err)

	_, err = svc.UpdatePaymentStatus(ctx, enrollment.ID, domain.PaymentPaid, domain.RoleAdmin)
	require.NoError(t, err)

	for _, courseID := range []uint{c1.ID, c2.ID} {
		access, err := svc.ResolveCourseAccess(ctx, student.ID, courseID)
		require.NoError(t, err)
		assert.True(t, access.Granted)
		assert.Equal(t, domain.AccessPackage, access.Via)
	}

	access, err := svc.ResolveCourseAccess(ctx, student.ID, outside.ID)
	require.NoError(t, err)
	assert.False(t, access.Granted)
	assert.Equal(t, domain.AccessNone, access.Via)
}

func TestUpdatePaymentStatus_Transitions(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "transitions@test.com")

	newPending := func(name string) *models.Enrollment {
		course := seedCourse(t, db, name, 100)
		enrollment, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
			StudentID:   student.ID,
			CourseID:    course.ID,
			PhoneNumber: "01001234567",
		})
		require.NoError(t, err)
		return enrollment
	}

	t.Run("pending to paid", func(t *testing.T) {
		e := newPending("T1")
		updated, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentPaid, domain.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, string(domain.PaymentPaid), updated.PaymentStatus)
		assert.Equal(t, 100.0, updated.Price, "price snapshot must survive status updates")
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		e := newPending("T2")
		updated, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentPending, domain.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, string(domain.PaymentPending), updated.PaymentStatus)
	})

	t.Run("pending to refunded rejected for non-admin", func(t *testing.T) {
		e := newPending("T3")
		_, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentRefunded, domain.RoleUser)
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("admin may correct out-of-machine", func(t *testing.T) {
		e := newPending("T4")
		_, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentFailed, domain.RoleUser)
		require.NoError(t, err)

		updated, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentPaid, domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, string(domain.PaymentPaid), updated.PaymentStatus)
	})

	t.Run("reset to pending is admin-only", func(t *testing.T) {
		e := newPending("T5")
		_, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentPaid, domain.RoleUser)
		require.NoError(t, err)

		_, err = svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentPending, domain.RoleUser)
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)

		updated, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentPending, domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, string(domain.PaymentPending), updated.PaymentStatus)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		e := newPending("T6")
		_, err := svc.UpdatePaymentStatus(ctx, e.ID, domain.PaymentStatus("charged"), domain.RoleAdmin)
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("unknown enrollment", func(t *testing.T) {
		_, err := svc.UpdatePaymentStatus(ctx, 9999, domain.PaymentPaid, domain.RoleAdmin)
		assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)
	})
}

func TestActivateForPayment_FlipsAndCreates(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "activate@test.com")
	course := seedCourse(t, db, "History", 450)

	courseID := course.ID
	payment := &models.Payment{
		UserID:         student.ID,
		CourseID:       &courseID,
		Amount:         450,
		CustomerMobile: "01001234567",
	}

	// No enrollment exists yet: activation creates it already paid.
	enrollment, err := svc.ActivateForPayment(ctx, payment)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentPaid), enrollment.PaymentStatus)
	assert.Equal(t, 450.0, enrollment.Price)

	// Re-activation is a no-op.
	again, err := svc.ActivateForPayment(ctx, payment)
	require.NoError(t, err)
	assert.Equal(t, enrollment.ID, again.ID)
	assert.Equal(t, string(domain.PaymentPaid), again.PaymentStatus)
}

func TestActivateForPayment_FlipsExistingPending(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "flip@test.com")
	course := seedCourse(t, db, "Arabic", 275)

	pending, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID:   student.ID,
		CourseID:    course.ID,
		PhoneNumber: "01001234567",
	})
	require.NoError(t, err)

	courseID := course.ID
	enrollment, err := svc.ActivateForPayment(ctx, &models.Payment{
		UserID:   student.ID,
		CourseID: &courseID,
		Amount:   275,
	})
	require.NoError(t, err)
	assert.Equal(t, pending.ID, enrollment.ID)
	assert.Equal(t, string(domain.PaymentPaid), enrollment.PaymentStatus)
}

func TestMarkFailedForPayment_OnlyTouchesPending(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "fail@test.com")
	course := seedCourse(t, db, "English", 150)

	enrollment, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID:   student.ID,
		CourseID:    course.ID,
		PhoneNumber: "01001234567",
	})
	require.NoError(t, err)

	courseID := course.ID
	payment := &models.Payment{UserID: student.ID, CourseID: &courseID, Amount: 150}

	require.NoError(t, svc.MarkFailedForPayment(ctx, payment))
	got, err := svc.GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentFailed), got.PaymentStatus)

	// A later stray failure report must not clobber a paid enrollment.
	_, err = svc.UpdatePaymentStatus(ctx, enrollment.ID, domain.PaymentPaid, domain.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailedForPayment(ctx, payment))

	got, err = svc.GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentPaid), got.PaymentStatus)
}

func TestListUserEnrollments_MergesDirectAndPackage(t *testing.T) {
	db := newTestDB(t)
	svc := newEnrollmentService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "listing@test.com")
	direct := seedCourse(t, db, "Standalone", 100)
	c1 := seedCourse(t, db, "Bundle A", 200)
	c2 := seedCourse(t, db, "Bundle B", 200)
	pkg := seedPackage(t, db, "Duo", 320, c1, c2)

	directEnrollment, err := svc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID:   student.ID,
		CourseID:    direct.ID,
		PhoneNumber: "01001234567",
	})
	require.NoError(t, err)
	_, err = svc.UpdatePaymentStatus(ctx, directEnrollment.ID, domain.PaymentPaid, domain.RoleAdmin)
	require.NoError(t, err)

	packageEnrollment, err := svc.CreatePackageEnrollment(ctx, &PackageEnrollmentInput{
		StudentID:   student.ID,
		PackageID:   pkg.ID,
		PhoneNumber: "01001234567",
	})
	require.NoError(t, err)
	_, err = svc.UpdatePaymentStatus(ctx, packageEnrollment.ID, domain.PaymentPaid, domain.RoleAdmin)
	require.NoError(t, err)

	views, err := svc.ListUserEnrollments(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)

	byID := make(map[string]*UserEnrollmentView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}

	directView := byID[fmt.Sprintf("enr_%d", directEnrollment.ID)]
	require.NotNil(t, directView)
	assert.False(t, directView.FromPackage)
	assert.Equal(t, 100.0, directView.Price)

	for _, c := range []*models.Course{c1, c2} {
		view := byID[fmt.Sprintf("pkg_%d_course_%d", packageEnrollment.ID, c.ID)]
		require.NotNil(t, view, "missing synthetic entry for course %d", c.ID)
		assert.True(t, view.FromPackage)
		assert.Equal(t, pkg.ID, view.PackageID)
		assert.Equal(t, "Duo", view.PackageName)
		assert.Equal(t, 320.0, view.Price)
		assert.Equal(t, string(domain.PaymentPaid), view.PaymentStatus)
	}
}
