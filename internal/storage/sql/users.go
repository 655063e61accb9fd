package sql

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mailmirror/backend/internal/domain"
)

// ========== User Repository ==========

// CreateUser 在同一事务中保存用户及其偏好
func (s *Store) CreateUser(user *domain.User, prefs *domain.Preferences) error {
	if user.CreatedOn.IsZero() {
		user.CreatedOn = time.Now().UTC()
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return translateError(err, domain.KindUser, user.Name())
		}
		return createPrefs(tx, user, prefs)
	})
}

// CreateUserWithEmail 在同一事务中保存用户、首选邮箱及二者的偏好
func (s *Store) CreateUserWithEmail(user *domain.User, email *domain.Email) error {
	if user.CreatedOn.IsZero() {
		user.CreatedOn = time.Now().UTC()
	}
	user.PreferredEmailID = nil
	email.Address = domain.NormalizeAddress(email.Address)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return translateError(err, domain.KindUser, user.Name())
		}
		if err := createPrefs(tx, user, nil); err != nil {
			return err
		}
		email.UserID = user.ID
		if err := tx.Create(email).Error; err != nil {
			return translateError(err, domain.KindEmail, email.Address)
		}
		if err := createPrefs(tx, email, nil); err != nil {
			return err
		}
		preferred := email.ID
		if err := tx.Model(&domain.User{}).Where("id = ?", user.ID).Update("preferred_email_id", preferred).Error; err != nil {
			return err
		}
		user.PreferredEmailID = &preferred
		return nil
	})
}

// createPrefs 为刚写入的归属记录创建偏好
func createPrefs(tx *gorm.DB, owner domain.Record, prefs *domain.Preferences) error {
	if prefs == nil {
		prefs = domain.NewPreferences(owner)
	}
	prefs.OwnerKind = owner.Kind()
	prefs.OwnerID = owner.PK()
	return translateError(tx.Create(prefs).Error, domain.KindPreferences, owner.PK())
}

func (s *Store) GetUser(id uint64) (*domain.User, error) {
	var u domain.User
	if err := s.db.First(&u, id).Error; err != nil {
		return nil, translateError(err, domain.KindUser, id)
	}
	return &u, nil
}

func (s *Store) FilterUsers(f domain.Filter) ([]*domain.User, error) {
	q, err := where(s.db, &domain.User{}, f)
	if err != nil {
		return nil, err
	}
	var rows []*domain.User
	return rows, q.Find(&rows).Error
}

// UpdateUser 更新用户，首选邮箱必须属于该用户
func (s *Store) UpdateUser(user *domain.User) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if user.PreferredEmailID != nil {
			var e domain.Email
			err := tx.First(&e, *user.PreferredEmailID).Error
			if err == nil && e.UserID != user.ID {
				err = gorm.ErrRecordNotFound
			}
			if err != nil {
				return fmt.Errorf("%w: email %d", domain.ErrPreferredNotOwned, *user.PreferredEmailID)
			}
		}
		return save(tx, user)
	})
}

// DeleteUser 先清空首选邮箱，再删除成员资格、邮箱、偏好与用户本身
func (s *Store) DeleteUser(id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&domain.User{}, id).Error; err != nil {
			return translateError(err, domain.KindUser, id)
		}
		if err := tx.Model(&domain.User{}).Where("id = ?", id).Update("preferred_email_id", nil).Error; err != nil {
			return err
		}

		memberIDs, err := idsOf(tx, &domain.Membership{}, "user_id", id)
		if err != nil {
			return err
		}
		if err := deletePrefs(tx, domain.KindMembership, memberIDs...); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.Membership{}).Error; err != nil {
			return err
		}

		emailIDs, err := idsOf(tx, &domain.Email{}, "user_id", id)
		if err != nil {
			return err
		}
		if err := deletePrefs(tx, domain.KindEmail, emailIDs...); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.Email{}).Error; err != nil {
			return err
		}

		if err := deletePrefs(tx, domain.KindUser, id); err != nil {
			return err
		}
		return tx.Delete(&domain.User{}, id).Error
	})
}

// ========== Email Repository ==========

// CreateEmail 保存邮箱及其偏好，地址统一转为小写
func (s *Store) CreateEmail(email *domain.Email, prefs *domain.Preferences) error {
	email.Address = domain.NormalizeAddress(email.Address)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&domain.User{}, email.UserID).Error; err != nil {
			return translateError(err, domain.KindUser, email.UserID)
		}
		if err := tx.Create(email).Error; err != nil {
			return translateError(err, domain.KindEmail, email.Address)
		}
		return createPrefs(tx, email, prefs)
	})
}

func (s *Store) GetEmail(id uint64) (*domain.Email, error) {
	var e domain.Email
	if err := s.db.First(&e, id).Error; err != nil {
		return nil, translateError(err, domain.KindEmail, id)
	}
	return &e, nil
}

// GetEmailByAddress 根据地址获取邮箱，不区分大小写
func (s *Store) GetEmailByAddress(address string) (*domain.Email, error) {
	address = domain.NormalizeAddress(address)
	var e domain.Email
	if err := s.db.Where("address = ?", address).First(&e).Error; err != nil {
		return nil, translateError(err, domain.KindEmail, address)
	}
	return &e, nil
}

func (s *Store) FilterEmails(f domain.Filter) ([]*domain.Email, error) {
	q, err := where(s.db, &domain.Email{}, f)
	if err != nil {
		return nil, err
	}
	var rows []*domain.Email
	return rows, q.Find(&rows).Error
}

func (s *Store) UpdateEmail(email *domain.Email) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return save(tx, email)
	})
}

// DeleteEmail 删除邮箱并维护用户的首选邮箱
func (s *Store) DeleteEmail(id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var e domain.Email
		if err := tx.First(&e, id).Error; err != nil {
			return translateError(err, domain.KindEmail, id)
		}

		var u domain.User
		err := tx.First(&u, e.UserID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			var emails []*domain.Email
			if err := tx.Where("user_id = ?", u.ID).Order("id").Find(&emails).Error; err != nil {
				return err
			}
			next, err := domain.ReassignPreferred(emails, u.PreferredEmailID, id)
			if err != nil {
				return err
			}
			if err := tx.Model(&domain.User{}).Where("id = ?", u.ID).Update("preferred_email_id", next).Error; err != nil {
				return err
			}
		}

		if err := deletePrefs(tx, domain.KindEmail, id); err != nil {
			return err
		}
		return tx.Delete(&domain.Email{}, id).Error
	})
}

// ========== Membership Repository ==========

// CreateMembership 保存成员资格及其偏好
func (s *Store) CreateMembership(m *domain.Membership, prefs *domain.Preferences) error {
	if !m.Role.Valid() {
		return domain.ErrInvalidRole
	}
	m.Address = domain.NormalizeAddress(m.Address)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&domain.MailingList{}, m.MailingListID).Error; err != nil {
			return translateError(err, domain.KindMailingList, m.MailingListID)
		}
		if err := tx.Create(m).Error; err != nil {
			return translateError(err, domain.KindMembership, m.Address)
		}
		return createPrefs(tx, m, prefs)
	})
}

func (s *Store) GetMembership(id uint64) (*domain.Membership, error) {
	var m domain.Membership
	if err := s.db.First(&m, id).Error; err != nil {
		return nil, translateError(err, domain.KindMembership, id)
	}
	return &m, nil
}

func (s *Store) FilterMemberships(f domain.Filter) ([]*domain.Membership, error) {
	q, err := where(s.db, &domain.Membership{}, f)
	if err != nil {
		return nil, err
	}
	var rows []*domain.Membership
	return rows, q.Find(&rows).Error
}

func (s *Store) UpdateMembership(m *domain.Membership) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return save(tx, m)
	})
}

func (s *Store) DeleteMembership(id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&domain.Membership{}, id).Error; err != nil {
			return translateError(err, domain.KindMembership, id)
		}
		if err := deletePrefs(tx, domain.KindMembership, id); err != nil {
			return err
		}
		return tx.Delete(&domain.Membership{}, id).Error
	})
}

// ========== Preferences Repository ==========

func (s *Store) GetPreferences(ownerKind domain.Kind, ownerID uint64) (*domain.Preferences, error) {
	var p domain.Preferences
	err := s.db.Where("owner_kind = ? AND owner_id = ?", string(ownerKind), ownerID).First(&p).Error
	if err != nil {
		return nil, translateError(err, domain.KindPreferences, fmt.Sprintf("%s/%d", ownerKind, ownerID))
	}
	return &p, nil
}

func (s *Store) GetPreferencesByID(id uint64) (*domain.Preferences, error) {
	var p domain.Preferences
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, translateError(err, domain.KindPreferences, id)
	}
	return &p, nil
}

func (s *Store) UpdatePreferences(prefs *domain.Preferences) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return save(tx, prefs)
	})
}

func deletePrefs(tx *gorm.DB, ownerKind domain.Kind, ownerIDs ...uint64) error {
	if len(ownerIDs) == 0 {
		return nil
	}
	return tx.Where("owner_kind = ? AND owner_id IN ?", string(ownerKind), ownerIDs).Delete(&domain.Preferences{}).Error
}
