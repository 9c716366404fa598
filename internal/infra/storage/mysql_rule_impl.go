package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"
	"go_request_guard/utils"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type MysqlRuleStorage struct {
	mysqlClient *gorm.DB
}

// NewMySQLClient opens the rule database and applies the pool settings.
// The returned func closes the pool.
func NewMySQLClient(c *configs.GuardConfig) (*gorm.DB, func(), error) {
	opt := c.DatabaseOptionConfig
	db, err := gorm.Open(mysql.Open(c.DatabaseConfig.GetDSN()), &gorm.Config{
		Logger: logger.New(utils.GetLogger(), logger.Config{
			SlowThreshold:             opt.SlowThreshold,
			LogLevel:                  gormLogLevel(opt.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database %s: %w", c.DatabaseConfig.SafeDSN(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opt.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opt.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opt.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(opt.ConnMaxIdleTime)

	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			utils.GetLogger().WithError(err).Warn("close mysql pool failed")
		}
	}

	if opt.AutoMigrate {
		if err := db.AutoMigrate(&model.RuleDefinition{}); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to migrate rule table: %w", err)
		}
	}
	return db, cleanup, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func NewMysqlRuleStorage(mysqlClient *gorm.DB) MySQLRuleStorageIface {
	return &MysqlRuleStorage{mysqlClient: mysqlClient}
}

var _ MySQLRuleStorageIface = (*MysqlRuleStorage)(nil)

// SaveRuleToDB inserts the rule, or updates it when the ID already exists.
func (s *MysqlRuleStorage) SaveRuleToDB(ctx context.Context, rule *model.RuleDefinition) error {
	tx := s.mysqlClient.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "engine", "priority", "status", "match", "effect", "path_index", "version", "updated_at"}),
	}).Create(rule).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("rule '%s' for engine '%s': %w", rule.Name, rule.Engine, ErrRuleDuplicate)
		}
		return fmt.Errorf("failed to save rule to mysql: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *MysqlRuleStorage) GetRuleFromDB(ctx context.Context, ruleID string) (*model.RuleDefinition, error) {
	rule := &model.RuleDefinition{}
	if err := s.mysqlClient.WithContext(ctx).First(rule, "id = ?", ruleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rule %s: %w", ruleID, ErrRuleNotFound)
		}
		return nil, fmt.Errorf("failed to get rule from mysql: %w", err)
	}
	return rule, nil
}

func (s *MysqlRuleStorage) DeleteRuleFromDB(ctx context.Context, ruleID string) error {
	res := s.mysqlClient.WithContext(ctx).Delete(&model.RuleDefinition{}, "id = ?", ruleID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete rule from mysql: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("rule %s: %w", ruleID, ErrRuleNotFound)
	}
	return nil
}

func (s *MysqlRuleStorage) applyFilter(db *gorm.DB, filter *model.RuleFilter) *gorm.DB {
	if filter == nil {
		return db
	}
	if filter.RuleID != nil {
		db = db.Where("id = ?", *filter.RuleID)
	}
	if filter.Engine != nil {
		db = db.Where("engine = ?", *filter.Engine)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.PathIndex != nil {
		db = db.Where("path_index = ?", *filter.PathIndex)
	}
	return db
}

func (s *MysqlRuleStorage) ListRules(ctx context.Context, filter *model.RuleFilter) ([]*model.RuleDefinition, error) {
	var rules []*model.RuleDefinition
	db := s.applyFilter(s.mysqlClient.WithContext(ctx).Model(&model.RuleDefinition{}), filter)

	if err := db.Order("priority DESC").Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules from mysql with filter: %w", err)
	}
	return rules, nil
}

func (s *MysqlRuleStorage) ListRulesWithPage(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error) {
	var rules []*model.RuleDefinition
	var total int64
	db := s.applyFilter(s.mysqlClient.WithContext(ctx).Model(&model.RuleDefinition{}), filter)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rules from mysql: %w", err)
	}

	if err := db.Order("priority DESC").Order("created_at ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&rules).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list rules with pagination from mysql: %w", err)
	}
	return rules, total, nil
}

func (s *MysqlRuleStorage) BatchGetRules(ctx context.Context, ruleIDs []string) ([]*model.RuleDefinition, error) {
	var rules []*model.RuleDefinition
	if len(ruleIDs) == 0 {
		return rules, nil
	}
	if err := s.mysqlClient.WithContext(ctx).Where("id IN ?", ruleIDs).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to batch get rules from mysql: %w", err)
	}
	return rules, nil
}
