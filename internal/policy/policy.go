// Package policy centralises who may do what in the academy.
//
// Allow is a pure function: callers load the membership facts that matter for the
// action (is the actor a teacher of the group, the author, the owner) into a Target
// and policy decides. Nothing here touches the database.
package policy

import "github.com/noah-isme/academy-api/internal/models"

// Action names a protected operation.
type Action string

const (
	GradeSubmission     Action = "submission.grade"
	ViewSubmission      Action = "submission.view"
	SubmitHomework      Action = "homework.submit"
	CreateHomework      Action = "homework.create"
	EditHomework        Action = "homework.edit"
	DeleteHomework      Action = "homework.delete"
	ViewGroupStats      Action = "group.stats"
	ViewStudentProgress Action = "progress.student"
	ViewGroupProgress   Action = "progress.group"
	ViewCourseProgress  Action = "progress.course"
	ManageUsers         Action = "users.manage"
	ManageCourses       Action = "courses.manage"
	ManageGroups        Action = "groups.manage"
	ViewAdminDashboard  Action = "dashboard.admin"
	ViewTeacherBoard    Action = "dashboard.teacher"
	ViewStudentBoard    Action = "dashboard.student"
	RunDeadlineSweep    Action = "deadlines.sweep"
	ViewActivityLog     Action = "activity.view"
	ViewSubmissionQueue Action = "submissions.queue"
)

// Actor is the authenticated user performing an action.
type Actor struct {
	ID   uint
	Role models.Role
}

// Target carries the relationship between the actor and the resource.
type Target struct {
	// OwnerID is the user the resource belongs to (submission student, progress subject).
	OwnerID uint
	// AuthorID is the creator of a homework, zero when unknown.
	AuthorID uint
	// GroupTeacher is true when the actor teaches the resource's group
	// (or, for student progress, one of the student's groups).
	GroupTeacher bool
	// GroupStudent is true when the actor is enrolled in the resource's group.
	GroupStudent bool
}

// Allow reports whether actor may perform action on target.
func Allow(actor Actor, action Action, target Target) bool {
	if actor.ID == 0 {
		return false
	}

	switch action {
	case GradeSubmission, CreateHomework:
		return actor.Role == models.RoleAdmin || (actor.Role == models.RoleTeacher && target.GroupTeacher)
	case EditHomework, DeleteHomework:
		return actor.Role == models.RoleAdmin || (actor.Role == models.RoleTeacher && target.AuthorID != 0 && target.AuthorID == actor.ID)
	case SubmitHomework:
		return actor.Role == models.RoleStudent && target.GroupStudent
	case ViewGroupStats, ViewGroupProgress:
		return isStaff(actor) || (actor.Role == models.RoleTeacher && target.GroupTeacher)
	case ViewSubmission:
		if actor.Role == models.RoleStudent {
			return target.OwnerID == actor.ID
		}
		return true
	case ViewStudentProgress:
		switch actor.Role {
		case models.RoleAdmin, models.RoleModerator:
			return true
		case models.RoleTeacher:
			return target.GroupTeacher
		default:
			return target.OwnerID == actor.ID
		}
	case ViewCourseProgress, ViewAdminDashboard, ViewActivityLog:
		return isStaff(actor)
	case ManageUsers, ManageCourses, ManageGroups, RunDeadlineSweep:
		return actor.Role == models.RoleAdmin
	case ViewTeacherBoard, ViewSubmissionQueue:
		return actor.Role == models.RoleAdmin || actor.Role == models.RoleTeacher
	case ViewStudentBoard:
		return actor.Role == models.RoleStudent
	default:
		return false
	}
}

func isStaff(actor Actor) bool {
	return actor.Role == models.RoleAdmin || actor.Role == models.RoleModerator
}
