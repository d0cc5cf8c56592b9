package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Assessment{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database connection is usable.
func (d *Database) Ping() error {
	if d == nil {
		return errors.New("database is nil")
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// SaveAssessment inserts a new assessment row, assigning a public id when
// none is set.
func (d *Database) SaveAssessment(a *Assessment) error {
	if a == nil {
		return errors.New("assessment is nil")
	}
	if strings.TrimSpace(a.PublicID) == "" {
		a.PublicID = uuid.NewString()
	}
	a.ApplicantID = strings.TrimSpace(a.ApplicantID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(a).Error
}

// AssessmentQuery holds filters and pagination for listing assessments.
type AssessmentQuery struct {
	ApplicantID string
	Tier        int
	Offset      int
	Limit       int
}

// ListAssessments returns matching assessments, newest first, and the total
// number of matches.
func (d *Database) ListAssessments(opts AssessmentQuery) ([]Assessment, int64, error) {
	base := d.gorm.Model(&Assessment{})
	if applicant := strings.TrimSpace(opts.ApplicantID); applicant != "" {
		base = base.Where("applicant_id = ?", applicant)
	}
	if opts.Tier > 0 {
		base = base.Where("tier = ?", opts.Tier)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Order("assessments.id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var rows []Assessment
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// GetAssessment looks an assessment up by its public id. A missing row is
// reported as gorm.ErrRecordNotFound.
func (d *Database) GetAssessment(publicID string) (*Assessment, error) {
	var a Assessment
	if err := d.gorm.Where("public_id = ?", strings.TrimSpace(publicID)).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// CountAssessments returns the number of stored assessments.
func (d *Database) CountAssessments() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Assessment{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_assessments_applicant_created ON assessments(applicant_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_assessments_tier_score ON assessments(tier, risk_score)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
