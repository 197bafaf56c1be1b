package domain

// Role is the closed set of account roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleInstructor:
		return true
	}
	return false
}

// HasRole checks a user's role against an allow-list.
func HasRole(role Role, allowed ...Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// PaymentStatus is the enrollment-side payment lifecycle.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

// CanTransition validates an enrollment payment-status transition.
// Returning to pending is an admin override and is validated separately.
func CanTransition(from, to PaymentStatus) bool {
	switch from {
	case PaymentPending:
		return to == PaymentPaid || to == PaymentFailed
	case PaymentPaid:
		return to == PaymentRefunded || to == PaymentPartiallyRefunded
	case PaymentPartiallyRefunded:
		return to == PaymentRefunded || to == PaymentPartiallyRefunded
	}
	return false
}

// PublishStatus is the catalog publication lifecycle.
type PublishStatus string

const (
	PublishDraft     PublishStatus = "draft"
	PublishScheduled PublishStatus = "scheduled"
	PublishPublished PublishStatus = "published"
)

// AccessVia reports how course access was granted.
type AccessVia string

const (
	AccessDirect  AccessVia = "direct"
	AccessPackage AccessVia = "package"
	AccessNone    AccessVia = "none"
)

// CourseAccess is the result of resolving a student's access to a course.
type CourseAccess struct {
	Granted bool      `json:"granted"`
	Via     AccessVia `json:"via"`
}

// EnrollmentTarget is the tagged union of the two things an enrollment can
// point at. Exactly one of CourseID/PackageID is set.
type EnrollmentTarget struct {
	CourseID  uint
	PackageID uint
}

// TargetCourse builds a direct-course target.
func TargetCourse(courseID uint) EnrollmentTarget {
	return EnrollmentTarget{CourseID: courseID}
}

// TargetPackage builds a package target.
func TargetPackage(packageID uint) EnrollmentTarget {
	return EnrollmentTarget{PackageID: packageID}
}

// IsPackage reports which variant is populated.
func (t EnrollmentTarget) IsPackage() bool {
	return t.PackageID != 0
}
