package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/academy-api/internal/models"
)

// HomeworkFilter narrows homework queries. Deadline bounds follow the sweep rules:
// DeadlineBefore is exclusive, DeadlineAfter exclusive and DeadlineUntil inclusive.
type HomeworkFilter struct {
	GroupID        *uint
	GroupIDs       []uint
	CourseID       *uint
	TeacherID      *uint
	StudentID      *uint
	DeadlineBefore *time.Time
	DeadlineAfter  *time.Time
	DeadlineUntil  *time.Time
	UnsubmittedBy  *uint
	Limit          int
	Newest         bool
	ByDeadline     bool
}

// HomeworkRepository defines persistence operations for homeworks.
type HomeworkRepository interface {
	List(ctx context.Context, filter HomeworkFilter) ([]models.Homework, error)
	Count(ctx context.Context, filter HomeworkFilter) (int64, error)
	GetByID(ctx context.Context, id uint) (models.Homework, error)
	Create(ctx context.Context, homework *models.Homework) error
	Update(ctx context.Context, homework *models.Homework) error
	Delete(ctx context.Context, id uint) error
	MaxSequence(ctx context.Context, groupID uint) (int, error)
	SequenceTaken(ctx context.Context, groupID uint, sequence int, excludeID uint) (bool, error)
	CountUnsubmittedBefore(ctx context.Context, groupID uint, sequence int, studentID uint) (int64, error)
}

type homeworkRepository struct {
	db *gorm.DB
}

// NewHomeworkRepository instantiates a GORM-backed homework repository.
func NewHomeworkRepository(db *gorm.DB) HomeworkRepository {
	return &homeworkRepository{db: db}
}

func (r *homeworkRepository) filtered(ctx context.Context, filter HomeworkFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Homework{})

	if filter.GroupID != nil {
		query = query.Where("homeworks.group_id = ?", *filter.GroupID)
	}
	if filter.GroupIDs != nil {
		query = query.Where("homeworks.group_id IN ?", append([]uint{0}, filter.GroupIDs...))
	}
	if filter.CourseID != nil {
		query = query.Where("homeworks.group_id IN (SELECT id FROM study_groups WHERE course_id = ?)", *filter.CourseID)
	}
	if filter.TeacherID != nil {
		query = query.Where("homeworks.group_id IN (SELECT group_id FROM group_teachers WHERE user_id = ?)", *filter.TeacherID)
	}
	if filter.StudentID != nil {
		query = query.Where("homeworks.group_id IN (SELECT group_id FROM group_students WHERE user_id = ?)", *filter.StudentID)
	}
	if filter.DeadlineBefore != nil {
		query = query.Where("homeworks.deadline < ?", *filter.DeadlineBefore)
	}
	if filter.DeadlineAfter != nil {
		query = query.Where("homeworks.deadline > ?", *filter.DeadlineAfter)
	}
	if filter.DeadlineUntil != nil {
		query = query.Where("homeworks.deadline <= ?", *filter.DeadlineUntil)
	}
	if filter.UnsubmittedBy != nil {
		query = query.Where("NOT EXISTS (SELECT 1 FROM submissions WHERE submissions.homework_id = homeworks.id AND submissions.student_id = ?)", *filter.UnsubmittedBy)
	}

	return query
}

func (r *homeworkRepository) List(ctx context.Context, filter HomeworkFilter) ([]models.Homework, error) {
	query := r.filtered(ctx, filter).Preload("Group")

	switch {
	case filter.Newest:
		query = query.Order("homeworks.created_at DESC").Order("homeworks.id DESC")
	case filter.ByDeadline:
		query = query.Order("homeworks.deadline ASC").Order("homeworks.id ASC")
	default:
		query = query.Order("homeworks.group_id ASC").Order("homeworks.sequence ASC").Order("homeworks.created_at ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var homeworks []models.Homework
	if err := query.Find(&homeworks).Error; err != nil {
		return nil, err
	}
	return homeworks, nil
}

func (r *homeworkRepository) Count(ctx context.Context, filter HomeworkFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *homeworkRepository) GetByID(ctx context.Context, id uint) (models.Homework, error) {
	var homework models.Homework
	if err := r.db.WithContext(ctx).
		Preload("Group.Teachers").
		Preload("Group.Students").
		First(&homework, id).Error; err != nil {
		return models.Homework{}, err
	}
	return homework, nil
}

func (r *homeworkRepository) Create(ctx context.Context, homework *models.Homework) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(homework).Error
}

func (r *homeworkRepository) Update(ctx context.Context, homework *models.Homework) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(homework).Error
}

func (r *homeworkRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Homework{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}
		return deleteHomeworks(tx, []uint{id})
	})
}

func (r *homeworkRepository) MaxSequence(ctx context.Context, groupID uint) (int, error) {
	var max int
	if err := r.db.WithContext(ctx).Model(&models.Homework{}).
		Where("group_id = ?", groupID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *homeworkRepository) SequenceTaken(ctx context.Context, groupID uint, sequence int, excludeID uint) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Homework{}).
		Where("group_id = ? AND sequence = ? AND id <> ?", groupID, sequence, excludeID).
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// CountUnsubmittedBefore counts homeworks of the group with a smaller sequence
// for which studentID has no submission row at all.
func (r *homeworkRepository) CountUnsubmittedBefore(ctx context.Context, groupID uint, sequence int, studentID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Homework{}).
		Where("group_id = ? AND sequence < ?", groupID, sequence).
		Where("NOT EXISTS (SELECT 1 FROM submissions WHERE submissions.homework_id = homeworks.id AND submissions.student_id = ?)", studentID).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func deleteHomeworks(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("related_homework_id IN ?", ids).Delete(&models.Notification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("homework_id IN ?", ids).Delete(&models.Submission{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Homework{}).Error
}
