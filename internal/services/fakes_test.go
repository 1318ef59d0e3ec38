package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/models"
)

var errFakeMiss = errors.New("cache miss")

type fakeDistributionRepo struct {
	rows           map[uuid.UUID]*models.MarkDistribution
	candidateCalls int
}

func newFakeDistributionRepo() *fakeDistributionRepo {
	return &fakeDistributionRepo{rows: make(map[uuid.UUID]*models.MarkDistribution)}
}

func (r *fakeDistributionRepo) Create(ctx context.Context, d *models.MarkDistribution) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	r.rows[d.ID] = &cp
	return nil
}

func (r *fakeDistributionRepo) Update(ctx context.Context, d *models.MarkDistribution) error {
	cp := *d
	r.rows[d.ID] = &cp
	return nil
}

func (r *fakeDistributionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.MarkDistribution, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeDistributionRepo) List(ctx context.Context, filter models.DistributionFilter) ([]models.MarkDistribution, error) {
	var out []models.MarkDistribution
	for _, row := range r.rows {
		if filter.SchoolID != nil && row.SchoolID != *filter.SchoolID {
			continue
		}
		if filter.ClassID != "" && row.ClassID != filter.ClassID {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (r *fakeDistributionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.rows[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeDistributionRepo) FindCandidates(ctx context.Context, scope models.DistributionScope) ([]models.MarkDistribution, error) {
	r.candidateCalls++
	var out []models.MarkDistribution
	for _, row := range r.rows {
		if row.SchoolID != scope.SchoolID || row.ClassID != scope.ClassID || row.AcademicYear != scope.AcademicYear {
			continue
		}
		if row.SubjectID != "" && row.SubjectID != scope.SubjectID {
			continue
		}
		if row.Semester != "" && row.Semester != scope.Semester {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (r *fakeDistributionRepo) ExistsForScope(ctx context.Context, scope models.DistributionScope, excludeID uuid.UUID) (bool, error) {
	for id, row := range r.rows {
		if id != excludeID && row.Scope() == scope {
			return true, nil
		}
	}
	return false, nil
}

type fakeCache struct {
	entries  map[string][]byte
	patterns []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return errFakeMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

type fakeAudit struct {
	actions []string
}

func (a *fakeAudit) Record(ctx context.Context, actor Actor, action, resourceType string, resourceID uuid.UUID, before, after interface{}) error {
	a.actions = append(a.actions, resourceType+":"+action)
	return nil
}

type fakeScoreRepo struct {
	rows map[uuid.UUID]map[string]models.StudentScoreSet
	err  error
}

func newFakeScoreRepo() *fakeScoreRepo {
	return &fakeScoreRepo{rows: make(map[uuid.UUID]map[string]models.StudentScoreSet)}
}

func (r *fakeScoreRepo) put(s models.StudentScoreSet) {
	if r.rows[s.DistributionID] == nil {
		r.rows[s.DistributionID] = make(map[string]models.StudentScoreSet)
	}
	if existing, ok := r.rows[s.DistributionID][s.StudentID]; ok {
		s.ID = existing.ID
	} else if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.rows[s.DistributionID][s.StudentID] = s
}

func (r *fakeScoreRepo) Upsert(ctx context.Context, s *models.StudentScoreSet) error {
	if r.err != nil {
		return r.err
	}
	r.put(*s)
	return nil
}

func (r *fakeScoreRepo) BulkUpsert(ctx context.Context, sets []models.StudentScoreSet) error {
	if r.err != nil {
		return r.err
	}
	for _, s := range sets {
		r.put(s)
	}
	return nil
}

func (r *fakeScoreRepo) FindByStudent(ctx context.Context, distributionID uuid.UUID, studentID string) (*models.StudentScoreSet, error) {
	row, ok := r.rows[distributionID][studentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *fakeScoreRepo) ListByDistribution(ctx context.Context, distributionID uuid.UUID) ([]models.StudentScoreSet, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.StudentScoreSet
	for _, row := range r.rows[distributionID] {
		out = append(out, row)
	}
	return out, nil
}

func schoolAdmin(schoolID uuid.UUID) Actor {
	id := schoolID
	return Actor{UserID: uuid.New(), SchoolID: &id, Role: models.RoleSchoolAdmin, IP: "127.0.0.1"}
}

func teacherOf(schoolID uuid.UUID) Actor {
	id := schoolID
	return Actor{UserID: uuid.New(), SchoolID: &id, Role: models.RoleTeacher}
}

func systemAdmin() Actor {
	return Actor{UserID: uuid.New(), Role: models.RoleSystemAdmin}
}
