package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/manonkim2/ai-character-chat/internal/common"
)

// Cache is the small KV surface the service needs for character info
// lookups. redisstore.Store implements it; tests pass nil.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

const characterCacheTTL = 10 * time.Minute

type Service struct {
	repo  *Repo
	cache Cache
}

func NewService(repo *Repo, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Built-in characters every user sees. These are never stored and cannot be
// deleted.
func defaultCharacters() []Character {
	return []Character{
		{ID: "default-1", Name: "친절한 상담가", Prompt: "사용자의 고민을 따뜻하게 들어주고 위로해주는 상담가.", Thumbnail: "/default_user.png"},
		{ID: "default-2", Name: "차가운 조언자", Prompt: "객관적이고 냉철하게 직설적으로 피드백하는 조언자.", Thumbnail: "/default_user.png"},
		{ID: "default-3", Name: "밝은 친구", Prompt: "밝고 긍정적으로 힘을 주는 친구 같은 캐릭터.", Thumbnail: "/default_user.png"},
	}
}

func defaultCharacter(id string) (*Character, bool) {
	for _, ch := range defaultCharacters() {
		if ch.ID == id {
			c := ch
			return &c, true
		}
	}
	return nil, false
}

var (
	ErrNameRequired   = errors.New("character name is required")
	ErrPromptRequired = errors.New("character prompt is required")
	ErrDefaultLocked  = errors.New("default characters cannot be deleted")
)

func (s *Service) CreateCharacter(ctx context.Context, userID, name, prompt, thumbnail string) (*Character, error) {
	name = strings.TrimSpace(name)
	prompt = strings.TrimSpace(prompt)
	if name == "" {
		return nil, ErrNameRequired
	}
	if prompt == "" {
		return nil, ErrPromptRequired
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	ch := &Character{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Prompt:    prompt,
		Thumbnail: strings.TrimSpace(thumbnail),
	}
	if err := s.repo.CreateCharacter(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// ListCharacters returns the built-in defaults followed by the user's own,
// creation time ascending.
func (s *Service) ListCharacters(ctx context.Context, userID string) ([]Character, error) {
	custom, err := s.repo.ListCharacters(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append(defaultCharacters(), custom...), nil
}

func characterCacheKey(userID, id string) string {
	return "character:" + userID + ":" + id
}

// GetCharacterInfo resolves a character (default or owned), consulting the
// cache before the DB for owned characters.
func (s *Service) GetCharacterInfo(ctx context.Context, userID, id string) (*Character, error) {
	if ch, ok := defaultCharacter(id); ok {
		return ch, nil
	}

	key := characterCacheKey(userID, id)
	if s.cache != nil {
		if b, hit, err := s.cache.Get(ctx, key); err == nil && hit {
			var ch Character
			if json.Unmarshal(b, &ch) == nil {
				return &ch, nil
			}
		}
	}

	ch, err := s.repo.GetCharacter(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(ch); err == nil {
			_ = s.cache.Set(ctx, key, b, characterCacheTTL)
		}
	}
	return ch, nil
}

func (s *Service) DeleteCharacter(ctx context.Context, userID, id string) error {
	if _, ok := defaultCharacter(id); ok {
		return ErrDefaultLocked
	}
	if err := s.repo.DeleteCharacter(ctx, userID, id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, characterCacheKey(userID, id))
	}
	return nil
}

// SaveConversation atomically replaces the stored history for the character.
// The character must exist (default or owned by the caller).
func (s *Service) SaveConversation(ctx context.Context, userID, characterID string, msgs []Message) error {
	if _, err := s.GetCharacterInfo(ctx, userID, characterID); err != nil {
		return err
	}
	return s.repo.ReplaceConversation(ctx, userID, characterID, msgs)
}

func (s *Service) ListConversation(ctx context.Context, userID, characterID string) ([]Message, error) {
	return s.repo.ListConversation(ctx, userID, characterID)
}

func (s *Service) DeleteConversation(ctx context.Context, userID, characterID string) error {
	return s.repo.DeleteConversation(ctx, userID, characterID)
}

// savePayload is the snapshot format stored in SaveJob.Payload.
type savePayload struct {
	Messages []savePayloadMsg `json:"messages"`
}

type savePayloadMsg struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSaveJob snapshots the conversation into a queued job row. The caller
// publishes the job id; the worker replays the snapshot.
func (s *Service) CreateSaveJob(ctx context.Context, userID, characterID string, msgs []Message) (*SaveJob, error) {
	if _, err := s.GetCharacterInfo(ctx, userID, characterID); err != nil {
		return nil, err
	}

	snap := savePayload{Messages: make([]savePayloadMsg, 0, len(msgs))}
	for _, m := range msgs {
		snap.Messages = append(snap.Messages, savePayloadMsg{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &SaveJob{
		ID:          id,
		UserID:      userID,
		CharacterID: characterID,
		Payload:     string(b),
		Status:      JobQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*SaveJob, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

// RunSaveJob executes one queued save job: unmarshal the snapshot, replace
// the stored conversation, record the outcome on the job row.
func (s *Service) RunSaveJob(ctx context.Context, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	var snap savePayload
	if err := json.Unmarshal([]byte(job.Payload), &snap); err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, "bad payload: "+err.Error())
		return err
	}

	msgs := make([]Message, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		msgs = append(msgs, Message{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	if err := s.repo.ReplaceConversation(ctx, job.UserID, job.CharacterID, msgs); err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID)
}

// IsNotFound reports whether err is the repo's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
