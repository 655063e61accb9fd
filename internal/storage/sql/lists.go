package sql

import (
	"gorm.io/gorm"

	"mailmirror/backend/internal/domain"
)

// ========== Domain Repository ==========

// CreateDomain 保存邮件域
func (s *Store) CreateDomain(d *domain.Domain) error {
	return translateError(s.db.Create(d).Error, domain.KindDomain, d.MailHost)
}

// GetDomain 根据 ID 获取邮件域
func (s *Store) GetDomain(id uint64) (*domain.Domain, error) {
	var d domain.Domain
	if err := s.db.First(&d, id).Error; err != nil {
		return nil, translateError(err, domain.KindDomain, id)
	}
	return &d, nil
}

// GetDomainByMailHost 根据 mail_host 获取邮件域
func (s *Store) GetDomainByMailHost(mailHost string) (*domain.Domain, error) {
	var d domain.Domain
	if err := s.db.Where("mail_host = ?", mailHost).First(&d).Error; err != nil {
		return nil, translateError(err, domain.KindDomain, mailHost)
	}
	return &d, nil
}

func (s *Store) FilterDomains(f domain.Filter) ([]*domain.Domain, error) {
	q, err := where(s.db, &domain.Domain{}, f)
	if err != nil {
		return nil, err
	}
	var rows []*domain.Domain
	return rows, q.Find(&rows).Error
}

func (s *Store) UpdateDomain(d *domain.Domain) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return save(tx, d)
	})
}

// DeleteDomain 删除邮件域，并在同一事务中删除其全部列表
func (s *Store) DeleteDomain(id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&domain.Domain{}, id).Error; err != nil {
			return translateError(err, domain.KindDomain, id)
		}
		listIDs, err := idsOf(tx, &domain.MailingList{}, "domain_id", id)
		if err != nil {
			return err
		}
		for _, listID := range listIDs {
			if err := deleteList(tx, listID); err != nil {
				return err
			}
		}
		return tx.Delete(&domain.Domain{}, id).Error
	})
}

// save 写回已存在的记录，记录不存在时返回 ErrNotFound
func save(tx *gorm.DB, rec domain.Record) error {
	ok, err := exists(tx, rec, rec.PK())
	if err != nil {
		return err
	}
	if !ok {
		return translateError(gorm.ErrRecordNotFound, rec.Kind(), rec.PK())
	}
	return translateError(tx.Save(rec).Error, rec.Kind(), rec.PK())
}

// ========== Mailing List Repository ==========

// CreateMailingList 在同一事务中保存列表及其配置
func (s *Store) CreateMailingList(list *domain.MailingList, settings *domain.ListSettings) error {
	if err := list.Validate(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(list).Error; err != nil {
			return translateError(err, domain.KindMailingList, list.FQDNListname)
		}
		settings.MailingListID = list.ID
		return translateError(tx.Create(settings).Error, domain.KindSettings, list.FQDNListname)
	})
}

func (s *Store) GetMailingList(id uint64) (*domain.MailingList, error) {
	var l domain.MailingList
	if err := s.db.First(&l, id).Error; err != nil {
		return nil, translateError(err, domain.KindMailingList, id)
	}
	return &l, nil
}

// GetMailingListByFQDN 根据 fqdn_listname 获取列表
func (s *Store) GetMailingListByFQDN(fqdn string) (*domain.MailingList, error) {
	var l domain.MailingList
	if err := s.db.Where("fqdn_listname = ?", fqdn).First(&l).Error; err != nil {
		return nil, translateError(err, domain.KindMailingList, fqdn)
	}
	return &l, nil
}

func (s *Store) FilterMailingLists(f domain.Filter) ([]*domain.MailingList, error) {
	q, err := where(s.db, &domain.MailingList{}, f)
	if err != nil {
		return nil, err
	}
	var rows []*domain.MailingList
	return rows, q.Find(&rows).Error
}

func (s *Store) UpdateMailingList(list *domain.MailingList) error {
	if err := list.Validate(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return save(tx, list)
	})
}

// DeleteMailingList 删除列表及其配置、成员资格
func (s *Store) DeleteMailingList(id uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&domain.MailingList{}, id).Error; err != nil {
			return translateError(err, domain.KindMailingList, id)
		}
		return deleteList(tx, id)
	})
}

func deleteList(tx *gorm.DB, id uint64) error {
	memberIDs, err := idsOf(tx, &domain.Membership{}, "mailing_list_id", id)
	if err != nil {
		return err
	}
	if err := deletePrefs(tx, domain.KindMembership, memberIDs...); err != nil {
		return err
	}
	if err := tx.Where("mailing_list_id = ?", id).Delete(&domain.Membership{}).Error; err != nil {
		return err
	}
	if err := tx.Where("mailing_list_id = ?", id).Delete(&domain.ListSettings{}).Error; err != nil {
		return err
	}
	return tx.Delete(&domain.MailingList{}, id).Error
}

// GetListSettings 获取列表配置
func (s *Store) GetListSettings(listID uint64) (*domain.ListSettings, error) {
	var cfg domain.ListSettings
	if err := s.db.Where("mailing_list_id = ?", listID).First(&cfg).Error; err != nil {
		return nil, translateError(err, domain.KindSettings, listID)
	}
	return &cfg, nil
}

func (s *Store) GetListSettingsByID(id uint64) (*domain.ListSettings, error) {
	var cfg domain.ListSettings
	if err := s.db.First(&cfg, id).Error; err != nil {
		return nil, translateError(err, domain.KindSettings, id)
	}
	return &cfg, nil
}

func (s *Store) UpdateListSettings(settings *domain.ListSettings) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return save(tx, settings)
	})
}
