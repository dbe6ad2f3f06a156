package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"checkin-desk-backend/internal/gateway"
	"checkin-desk-backend/internal/model"
	"checkin-desk-backend/internal/parse"
)

// DefaultSearchLimit caps the rows a registration search returns.
const DefaultSearchLimit = 200

// Gateway messages.
const (
	msgNotFound         = "No registration found with this QR code"
	msgWrongInstance    = "This registration is for a different event instance."
	msgAlreadyIn        = "This registrant is already checked in"
	msgCheckedIn        = "Check-in successful!"
	msgNotCheckedIn     = "This registrant is not checked in."
	msgUndone           = "Check-in has been undone."
	msgRegistrationGone = "Registration not found."
)

// Store is the database-backed registration gateway plus the writes used
// to load event data.
type Store interface {
	gateway.Gateway
	UpsertInstances(ctx context.Context, instances []model.EventInstance) error
	UpsertRegistrations(ctx context.Context, regs []model.Registration) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db          *gorm.DB
	searchLimit int
	now         func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, searchLimit int) Store {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &gormStore{db: db, searchLimit: searchLimit, now: time.Now}
}

// LookupByCode resolves a scanned payload to a registration of the given
// instance without changing it.
func (s *gormStore) LookupByCode(ctx context.Context, req gateway.LookupRequest) (*gateway.CheckinResult, error) {
	parsed, err := parse.ParseCode(req.Code)
	if err != nil {
		return &gateway.CheckinResult{Success: false, Message: msgNotFound}, nil
	}

	reg, err := s.findByKey(ctx, s.db, parsed)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &gateway.CheckinResult{Success: false, Message: msgNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup registration %q: %w", parsed.Key, err)
	}

	if req.InstanceID != "" && reg.InstanceID != req.InstanceID {
		res := toResult(reg, false)
		res.Success = false
		res.Message = msgWrongInstance
		return res, nil
	}

	already := reg.Status == req.CheckinStatus
	res := toResult(reg, already)
	if already {
		res.Message = msgAlreadyIn
	}
	return res, nil
}

// CommitCheckIn moves the registration to the check-in status and remembers
// the status it had, so the check-in can be undone.
func (s *gormStore) CommitCheckIn(ctx context.Context, req gateway.RegistrationRequest) (*gateway.CheckinResult, error) {
	var res *gateway.CheckinResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := s.findByID(tx, req.RegistrationID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res = &gateway.CheckinResult{Success: false, Message: msgRegistrationGone, RegistrationID: req.RegistrationID}
			return nil
		}
		if err != nil {
			return err
		}
		if req.InstanceID != "" && reg.InstanceID != req.InstanceID {
			res = toResult(reg, false)
			res.Success = false
			res.Message = msgWrongInstance
			return nil
		}
		if reg.Status == req.CheckinStatus {
			res = toResult(reg, true)
			res.Message = msgAlreadyIn
			return nil
		}

		now := s.now()
		if err := tx.Model(&model.Registration{}).Where("id = ?", reg.ID).Updates(map[string]interface{}{
			"status":          req.CheckinStatus,
			"previous_status": reg.Status,
			"checked_in_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("failed to check in registration %s: %w", reg.ID, err)
		}
		res = toResult(reg, false)
		res.Message = msgCheckedIn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit check-in: %w", err)
	}
	return res, nil
}

// UndoCheckIn restores the status the registration had before check-in.
func (s *gormStore) UndoCheckIn(ctx context.Context, req gateway.RegistrationRequest) (*gateway.UndoResult, error) {
	var res *gateway.UndoResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := s.findByID(tx, req.RegistrationID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res = &gateway.UndoResult{Success: false, Message: msgRegistrationGone}
			return nil
		}
		if err != nil {
			return err
		}
		if reg.Status != req.CheckinStatus {
			res = &gateway.UndoResult{Success: false, Message: msgNotCheckedIn, RegistrantName: reg.FullName()}
			return nil
		}

		previous := reg.PreviousStatus
		if previous == "" || previous == req.CheckinStatus {
			previous = model.DefaultRegistrationStatus
		}
		if err := tx.Model(&model.Registration{}).Where("id = ?", reg.ID).Updates(map[string]interface{}{
			"status":          previous,
			"previous_status": "",
			"checked_in_at":   nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to undo check-in of registration %s: %w", reg.ID, err)
		}
		res = &gateway.UndoResult{Success: true, Message: msgUndone, RegistrantName: reg.FullName()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("undo check-in: %w", err)
	}
	return res, nil
}

// SearchRegistrations matches case-insensitive prefixes of every non-empty
// criterion within the instance.
func (s *gormStore) SearchRegistrations(ctx context.Context, req gateway.SearchRequest) ([]gateway.SearchResult, error) {
	q := s.db.WithContext(ctx).Model(&model.Registration{}).Preload("Instance")
	if req.InstanceID != "" {
		q = q.Where("instance_id = ?", req.InstanceID)
	}
	for _, c := range []struct{ column, value string }{
		{"first_name", req.FirstName},
		{"last_name", req.LastName},
		{"email", req.Email},
	} {
		if v := strings.TrimSpace(c.value); v != "" {
			q = q.Where("LOWER("+c.column+") LIKE ? ESCAPE '\\'", likePrefix(v))
		}
	}

	var regs []model.Registration
	if err := q.Order("last_name").Order("first_name").Order("id").Limit(s.searchLimit).Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("search registrations: %w", err)
	}

	out := make([]gateway.SearchResult, 0, len(regs))
	for _, r := range regs {
		out = append(out, gateway.SearchResult{
			ID:            r.ID,
			Name:          r.FullName(),
			Email:         r.Email,
			Status:        r.Status,
			EventName:     r.Instance.EventName,
			InstanceTitle: r.Instance.Title,
		})
	}
	return out, nil
}

// ListInstancesByDate returns the instances starting on date (YYYY-MM-DD).
func (s *gormStore) ListInstancesByDate(ctx context.Context, date string) ([]gateway.InstanceOption, error) {
	var instances []model.EventInstance
	if err := s.db.WithContext(ctx).
		Where("start_date = ?", date).
		Order("start_time").Order("event_name").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("list instances for %s: %w", date, err)
	}

	out := make([]gateway.InstanceOption, 0, len(instances))
	for _, inst := range instances {
		out = append(out, gateway.InstanceOption{
			Value:             inst.ID,
			Label:             inst.Label(),
			EventName:         inst.EventName,
			InstanceTitle:     inst.Title,
			InstanceStartDate: inst.StartDate,
			InstanceStartTime: gateway.TimeText(inst.StartTime),
		})
	}
	return out, nil
}

// CountAttended counts the registrations of the instance in the check-in status.
func (s *gormStore) CountAttended(ctx context.Context, instanceID, checkinStatus string) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Registration{}).
		Where("instance_id = ? AND status = ?", instanceID, checkinStatus).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count attended for %s: %w", instanceID, err)
	}
	return int(n), nil
}

// UpsertInstances inserts or refreshes event instances.
func (s *gormStore) UpsertInstances(ctx context.Context, instances []model.EventInstance) error {
	if len(instances) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_name", "title", "start_date", "start_time", "updated_at"}),
	}).Create(&instances).Error
}

// UpsertRegistrations inserts or refreshes registrations. The check-in
// status of an existing row is left alone.
func (s *gormStore) UpsertRegistrations(ctx context.Context, regs []model.Registration) error {
	if len(regs) == 0 {
		return nil
	}
	for i := range regs {
		if regs[i].Status == "" {
			regs[i].Status = model.DefaultRegistrationStatus
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Instance").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"instance_id", "checkin_code", "first_name", "last_name", "email", "updated_at"}),
		}).Create(&regs).Error
	})
}

func (s *gormStore) findByKey(ctx context.Context, db *gorm.DB, code parse.ParsedCode) (model.Registration, error) {
	q := db.WithContext(ctx).Preload("Instance")
	switch code.Kind {
	case parse.KeyCode:
		q = q.Where("checkin_code = ?", code.Key)
	case parse.KeyRegistration:
		q = q.Where("id = ?", code.Key)
	default:
		q = q.Where("checkin_code = ? OR id = ?", code.Key, code.Key)
	}
	var reg model.Registration
	err := q.First(&reg).Error
	return reg, err
}

func (s *gormStore) findByID(tx *gorm.DB, id string) (model.Registration, error) {
	var reg model.Registration
	err := tx.Preload("Instance").Where("id = ?", id).First(&reg).Error
	return reg, err
}

func toResult(reg model.Registration, already bool) *gateway.CheckinResult {
	return &gateway.CheckinResult{
		Success:           true,
		AlreadyCheckedIn:  already,
		RegistrantName:    reg.FullName(),
		EventName:         reg.Instance.EventName,
		InstanceTitle:     reg.Instance.Title,
		RegistrationID:    reg.ID,
		InstanceStartTime: gateway.TimeText(reg.Instance.StartTime),
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(v string) string {
	return likeEscaper.Replace(strings.ToLower(v)) + "%"
}
