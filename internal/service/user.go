package service

import (
	"errors"

	"task-service/internal/apperr"
	"task-service/internal/model"
	"task-service/internal/partition"
	"task-service/internal/policy"

	"gorm.io/gorm"
)

// UserUpdate is the payload for partial user updates. Role changes are an
// admin-only field.
type UserUpdate struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Department *string `json:"department,omitempty"`
	Role       *string `json:"role,omitempty"`
}

// ListUsers returns the users visible to p within the active partition.
func ListUsers(pc *partition.Context, p *policy.Principal) ([]model.User, error) {
	if d := policy.Authorize(p, policy.ActionList, policy.KindUser, nil); !d.Allowed {
		return nil, denied(d)
	}

	var users []model.User
	err := pc.DB().
		Scopes(policy.VisibilityFilter(p, policy.KindUser)).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns one user by id within p's visible scope.
func GetUser(pc *partition.Context, p *policy.Principal, id uint) (*model.User, error) {
	user, err := fetchUser(pc, id)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionRead, policy.KindUser, user); !d.Allowed {
		return nil, conceal(d)
	}
	return user, nil
}

// UpdateUser applies a partial update to a user p may edit.
func UpdateUser(pc *partition.Context, p *policy.Principal, id uint, in UserUpdate) (*model.User, error) {
	user, err := fetchUser(pc, id)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionUpdate, policy.KindUser, user); !d.Allowed {
		return nil, conceal(d)
	}

	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Department != nil {
		user.Department = *in.Department
	}
	if in.Role != nil {
		if p.Role != model.RoleAdmin {
			return nil, apperr.Validation("role", "only admins may change roles")
		}
		role := model.Role(*in.Role)
		if !model.ValidRole(role) {
			return nil, apperr.Validation("role", "must be one of admin, manager, employee")
		}
		user.Role = role
	}

	if err := pc.DB().Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Me returns p's own user record from the active partition.
func Me(pc *partition.Context, p *policy.Principal) (*model.User, error) {
	if p == nil || !p.Authenticated {
		return nil, apperr.ErrUnauthenticated
	}
	return fetchUser(pc, p.UserID)
}

func fetchUser(pc *partition.Context, id uint) (*model.User, error) {
	var user model.User
	err := pc.DB().Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
