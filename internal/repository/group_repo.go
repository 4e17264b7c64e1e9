package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/models"
)

// GroupFilter narrows group listings to a course or a member.
type GroupFilter struct {
	CourseID  *uint
	TeacherID *uint
	StudentID *uint
}

// GroupRepository defines persistence operations for groups and their memberships.
type GroupRepository interface {
	List(ctx context.Context, filter GroupFilter) ([]models.Group, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id uint) (models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id uint) error
	AddStudent(ctx context.Context, groupID, userID uint) error
	RemoveStudent(ctx context.Context, groupID, userID uint) error
	AddTeacher(ctx context.Context, groupID, userID uint) error
	RemoveTeacher(ctx context.Context, groupID, userID uint) error
	StudentIDs(ctx context.Context, groupID uint) ([]uint, error)
	CountStudents(ctx context.Context, groupIDs []uint) (int64, error)
	IsTeacher(ctx context.Context, groupID, userID uint) (bool, error)
	IsStudent(ctx context.Context, groupID, userID uint) (bool, error)
	SharesGroup(ctx context.Context, teacherID, studentID uint) (bool, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository instantiates a GORM-backed group repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) List(ctx context.Context, filter GroupFilter) ([]models.Group, error) {
	query := r.db.WithContext(ctx).Model(&models.Group{}).Preload("Teachers").Preload("Students")

	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.TeacherID != nil {
		query = query.Where("id IN (SELECT group_id FROM group_teachers WHERE user_id = ?)", *filter.TeacherID)
	}
	if filter.StudentID != nil {
		query = query.Where("id IN (SELECT group_id FROM group_students WHERE user_id = ?)", *filter.StudentID)
	}

	var groups []models.Group
	if err := query.Order("name ASC").Order("id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Group{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Teachers").Preload("Students").First(&group, id).Error; err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Omit("Teachers", "Students").Create(group).Error
}

func (r *groupRepository) Update(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Omit("Teachers", "Students").Save(group).Error
}

func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteGroupTree(tx, id)
	})
}

func (r *groupRepository) AddStudent(ctx context.Context, groupID, userID uint) error {
	return r.appendMember(ctx, groupID, userID, "Students")
}

func (r *groupRepository) RemoveStudent(ctx context.Context, groupID, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.Group{ID: groupID}).Association("Students").Delete(&models.User{ID: userID})
}

func (r *groupRepository) AddTeacher(ctx context.Context, groupID, userID uint) error {
	return r.appendMember(ctx, groupID, userID, "Teachers")
}

func (r *groupRepository) RemoveTeacher(ctx context.Context, groupID, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.Group{ID: groupID}).Association("Teachers").Delete(&models.User{ID: userID})
}

func (r *groupRepository) appendMember(ctx context.Context, groupID, userID uint, association string) error {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Group{ID: groupID}).Association(association).Append(&user)
}

func (r *groupRepository) StudentIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Table("group_students").
		Where("group_id = ?", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountStudents counts distinct students enrolled in any of groupIDs; nil counts every group.
func (r *groupRepository) CountStudents(ctx context.Context, groupIDs []uint) (int64, error) {
	query := r.db.WithContext(ctx).Table("group_students")
	if groupIDs != nil {
		if len(groupIDs) == 0 {
			return 0, nil
		}
		query = query.Where("group_id IN ?", groupIDs)
	}

	var total int64
	if err := query.Distinct("user_id").Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *groupRepository) IsTeacher(ctx context.Context, groupID, userID uint) (bool, error) {
	return r.isMember(ctx, "group_teachers", groupID, userID)
}

func (r *groupRepository) IsStudent(ctx context.Context, groupID, userID uint) (bool, error) {
	return r.isMember(ctx, "group_students", groupID, userID)
}

func (r *groupRepository) isMember(ctx context.Context, table string, groupID, userID uint) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Table(table).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// SharesGroup reports whether teacherID teaches any group studentID attends.
func (r *groupRepository) SharesGroup(ctx context.Context, teacherID, studentID uint) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Table("group_teachers").
		Joins("JOIN group_students ON group_students.group_id = group_teachers.group_id").
		Where("group_teachers.user_id = ? AND group_students.user_id = ?", teacherID, studentID).
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// deleteGroupTree removes a group with its memberships, homeworks, submissions and
// homework notifications. Runs inside the caller's transaction.
func deleteGroupTree(tx *gorm.DB, groupID uint) error {
	var homeworkIDs []uint
	if err := tx.Model(&models.Homework{}).Where("group_id = ?", groupID).Pluck("id", &homeworkIDs).Error; err != nil {
		return err
	}
	if err := deleteHomeworks(tx, homeworkIDs); err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM group_teachers WHERE group_id = ?", groupID).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM group_students WHERE group_id = ?", groupID).Error; err != nil {
		return err
	}

	result := tx.Delete(&models.Group{}, groupID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
