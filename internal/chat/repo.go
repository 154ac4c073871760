package chat

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateCharacter(ctx context.Context, ch *Character) error {
	return r.db.WithContext(ctx).Create(ch).Error
}

func (r *Repo) GetCharacter(ctx context.Context, userID, id string) (*Character, error) {
	var ch Character
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&ch).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListCharacters returns the user's characters in creation order.
func (r *Repo) ListCharacters(ctx context.Context, userID string) ([]Character, error) {
	var out []Character
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) DeleteCharacter(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Character{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceConversation atomically replaces the stored history for one
// (user, character) pair: delete + insert inside a single transaction.
func (r *Repo) ReplaceConversation(ctx context.Context, userID, characterID string, msgs []Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND character_id = ?", userID, characterID).
			Delete(&Message{}).Error; err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		for i := range msgs {
			msgs[i].ID = 0
			msgs[i].UserID = userID
			msgs[i].CharacterID = characterID
		}
		return tx.Create(&msgs).Error
	})
}

// ListConversation returns messages in creation time ascending order.
func (r *Repo) ListConversation(ctx context.Context, userID, characterID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) DeleteConversation(ctx context.Context, userID, characterID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Delete(&Message{}).Error
}

// Save-job CRUD

func (r *Repo) CreateJob(ctx context.Context, job *SaveJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*SaveJob, error) {
	var j SaveJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&SaveJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&SaveJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&SaveJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}
