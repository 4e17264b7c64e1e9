package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/academy-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	HomeworkID *uint
	StudentID  *uint
	GroupID    *uint
	GroupIDs   []uint
	CourseID   *uint
	TeacherID  *uint
	IsGraded   *bool
	Limit      int
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	Count(ctx context.Context, filter SubmissionFilter) (int64, error)
	AverageScore(ctx context.Context, filter SubmissionFilter) (float64, error)
	SumScores(ctx context.Context, filter SubmissionFilter) (int64, error)
	CountLate(ctx context.Context, studentID uint) (int64, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByHomeworkAndStudent(ctx context.Context, homeworkID, studentID uint) (models.Submission, error)
	StudentIDs(ctx context.Context, homeworkID uint) ([]uint, error)
	CreateIfAbsent(ctx context.Context, submission *models.Submission) (bool, error)
	Grade(ctx context.Context, submission *models.Submission, notification *models.Notification) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) filtered(ctx context.Context, filter SubmissionFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	if filter.HomeworkID != nil {
		query = query.Where("submissions.homework_id = ?", *filter.HomeworkID)
	}
	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}
	if filter.IsGraded != nil {
		query = query.Where("submissions.is_graded = ?", *filter.IsGraded)
	}
	if filter.GroupID != nil {
		query = query.Where("submissions.homework_id IN (SELECT id FROM homeworks WHERE group_id = ?)", *filter.GroupID)
	}
	if filter.GroupIDs != nil {
		query = query.Where("submissions.homework_id IN (SELECT id FROM homeworks WHERE group_id IN ?)", append([]uint{0}, filter.GroupIDs...))
	}
	if filter.CourseID != nil {
		query = query.Where("submissions.homework_id IN (SELECT homeworks.id FROM homeworks JOIN study_groups ON study_groups.id = homeworks.group_id WHERE study_groups.course_id = ?)", *filter.CourseID)
	}
	if filter.TeacherID != nil {
		query = query.Where("submissions.homework_id IN (SELECT homeworks.id FROM homeworks JOIN group_teachers ON group_teachers.group_id = homeworks.group_id WHERE group_teachers.user_id = ?)", *filter.TeacherID)
	}

	return query
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.filtered(ctx, filter).
		Preload("Homework").
		Preload("Student").
		Order("submissions.submitted_at DESC").
		Order("submissions.id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) Count(ctx context.Context, filter SubmissionFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *submissionRepository) AverageScore(ctx context.Context, filter SubmissionFilter) (float64, error) {
	var avg float64
	if err := r.filtered(ctx, filter).Select("COALESCE(AVG(submissions.score_percent), 0)").Scan(&avg).Error; err != nil {
		return 0, err
	}
	return avg, nil
}

func (r *submissionRepository) SumScores(ctx context.Context, filter SubmissionFilter) (int64, error) {
	var sum int64
	if err := r.filtered(ctx, filter).Select("COALESCE(SUM(submissions.score_percent), 0)").Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *submissionRepository) CountLate(ctx context.Context, studentID uint) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Joins("JOIN homeworks ON homeworks.id = submissions.homework_id").
		Where("submissions.student_id = ? AND submissions.submitted_at > homeworks.deadline", studentID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Homework.Group.Teachers").
		Preload("Student").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByHomeworkAndStudent(ctx context.Context, homeworkID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Homework").
		Where("homework_id = ? AND student_id = ?", homeworkID, studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) StudentIDs(ctx context.Context, homeworkID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("homework_id = ?", homeworkID).
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateIfAbsent inserts the submission unless one already exists for the same
// (homework, student). The unique index makes the check and the insert one atomic
// statement; created is false when another writer got there first.
func (r *submissionRepository) CreateIfAbsent(ctx context.Context, submission *models.Submission) (bool, error) {
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "homework_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(submission)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Grade stores the grade and the student's notification in one transaction.
func (r *submissionRepository) Grade(ctx context.Context, submission *models.Submission, notification *models.Notification) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Submission{}).
			Where("id = ?", submission.ID).
			Updates(map[string]interface{}{
				"score_percent":   submission.ScorePercent,
				"teacher_comment": submission.TeacherComment,
				"is_graded":       true,
				"graded_at":       submission.GradedAt,
				"graded_by_id":    submission.GradedByID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Omit(clause.Associations).Create(notification).Error
	})
}
