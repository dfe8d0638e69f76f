package repository

import (
	"context"
	"errors"
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
	"github.com/afrisend/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrIllegalTransition is returned when a status update is rejected
	// by the monotonic state machine.
	ErrIllegalTransition = errors.New("illegal status transition")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// UpdateStatus applies a monotonic status transition as a conditional
// update: the row only changes when its current status is a legal source
// for the target. Zero rows affected means the transition was illegal
// (or the message does not exist).
func (r *MessageRepository) UpdateStatus(ctx context.Context, id int64, to model.MessageStatus, failureReason string) error {
	sources := model.TransitionSources(to)
	if len(sources) == 0 {
		return ErrIllegalTransition
	}

	updates := map[string]interface{}{"status": string(to)}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ? AND status IN ?", id, statusStrings(sources)).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIllegalTransition
	}
	return nil
}

// CancelScheduled cancels a not-yet-queued scheduled message. Only
// PENDING rows qualify; anything further along is too late to cancel.
func (r *MessageRepository) CancelScheduled(ctx context.Context, accountID, id int64, reason string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ? AND account_id = ? AND status = ?", id, accountID, string(model.MessageStatusPending)).
		Updates(map[string]interface{}{
			"status":         string(model.MessageStatusFailed),
			"failure_reason": reason,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIllegalTransition
	}
	return nil
}

// ListDueScheduled returns PENDING messages whose schedule time has
// passed, for the sweeper to promote into the queue.
func (r *MessageRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", string(model.MessageStatusPending), now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toMessageModels(entities), nil
}

// ListStaleQueued returns QUEUED messages that have not moved since
// cutoff. A queued row only sits still that long when its post-commit
// queue publish failed, so the sweeper re-publishes these.
func (r *MessageRepository) ListStaleQueued(ctx context.Context, cutoff time.Time, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND updated_at <= ?", string(model.MessageStatusQueued), cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toMessageModels(entities), nil
}

// TouchQueued bumps updated_at on a still-stale QUEUED row. The
// conditional update is the sweeper's claim and keeps the row out of
// the stale window until another full threshold passes.
func (r *MessageRepository) TouchQueued(ctx context.Context, id int64, cutoff time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ? AND status = ? AND updated_at <= ?", id, string(model.MessageStatusQueued), cutoff).
		Update("updated_at", time.Now())

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIllegalTransition
	}
	return nil
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.BatchID != nil && *f.BatchID != "" {
		q = q.Where("batch_id = ?", *f.BatchID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	if f.Recipient != nil && *f.Recipient != "" {
		q = q.Where("recipient = ?", *f.Recipient)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}

// GetMessagesWithDeliveryReports joins messages with their report
// history. Two queries instead of a json_agg join so the same code runs
// on sqlite in tests.
func (r *MessageRepository) GetMessagesWithDeliveryReports(ctx context.Context, f model.MessageFilter) ([]*model.MessageWithDeliveryReports, int64, error) {
	messages, total, err := r.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	if len(messages) == 0 {
		return []*model.MessageWithDeliveryReports{}, total, nil
	}

	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}

	var reportEntities []*DeliveryReportEntity
	err = r.Read(ctx).WithContext(ctx).
		Where("message_id IN ?", ids).
		Order("id DESC").
		Find(&reportEntities).
		Error
	if err != nil {
		return nil, 0, err
	}

	byMessage := make(map[int64][]model.DeliveryReport, len(messages))
	for _, e := range reportEntities {
		byMessage[e.MessageID] = append(byMessage[e.MessageID], *toDeliveryReportModel(e))
	}

	out := make([]*model.MessageWithDeliveryReports, len(messages))
	for i, m := range messages {
		reports := byMessage[m.ID]
		if reports == nil {
			reports = []model.DeliveryReport{}
		}
		out[i] = &model.MessageWithDeliveryReports{
			Message:         *m,
			DeliveryReports: reports,
		}
	}
	return out, total, nil
}

func statusStrings(statuses []model.MessageStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
