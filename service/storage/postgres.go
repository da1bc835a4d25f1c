package storage

import (
	"context"
	"errors"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
	"PPChat/tools/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS chats (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		is_group   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		sender_id  TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		type       TEXT NOT NULL DEFAULT 'text',
		file_url   TEXT,
		file_name  TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE messages ADD COLUMN IF NOT EXISTS temp_id TEXT`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS reactions (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		emoji      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (message_id, user_id)
	)`,
}

// PostgresStore 基于 pgx 连接池的生产存储
type PostgresStore struct {
	pool *pgxpool.Pool
	gen  *ids.Generator
}

// NewPostgresStore 建连并 ping；maxConns <= 0 使用 pgxpool 默认值
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("parse postgres dsn", "err", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("connect postgres", "err", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.ErrStorage.WrapMsg("ping postgres", "err", err)
	}
	return &PostgresStore{pool: pool, gen: ids.NewGenerator(1)}, nil
}

// WithGenerator 让生成的 id 带上本节点的雪花节点号
func (s *PostgresStore) WithGenerator(g *ids.Generator) *PostgresStore {
	s.gen = g
	return s
}

// Migrate 建表（已存在则跳过）
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errs.ErrStorage.WrapMsg("migrate", "err", err)
		}
	}
	return nil
}

// CreateMessage 单条语句完成：发送者是成员才插入
func (s *PostgresStore) CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	const q = `
INSERT INTO messages (id, chat_id, sender_id, content, type, file_url, file_name, created_at, temp_id)
SELECT $1::text, $2::text, $3::text, $4::text, $5::text, NULLIF($6::text, ''), NULLIF($7::text, ''), $8::timestamptz, NULLIF($9::text, '')
WHERE EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $2::text AND user_id = $3::text)
RETURNING id, chat_id, sender_id, content, type, COALESCE(file_url, ''), COALESCE(file_name, ''), created_at, COALESCE(temp_id, '')`

	var m model.Message
	err := s.pool.QueryRow(ctx, q,
		s.gen.NextString(), in.ChatID, in.SenderID, in.Content, in.Type, in.FileURL, in.FileName, now(), in.TempID,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Type, &m.FileURL, &m.FileName, &m.CreatedAt, &m.TempID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNoPermission.WrapMsg("sender is not a participant", "chatId", in.ChatID, "senderId", in.SenderID)
	}
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("insert message", "chatId", in.ChatID, "err", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *PostgresStore) UpdateChatActivity(ctx context.Context, chatID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET updated_at = GREATEST(updated_at, $2::timestamptz) WHERE id = $1`, chatID, at.UTC())
	if err != nil {
		return errs.ErrStorage.WrapMsg("update chat activity", "chatId", chatID, "err", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	return nil
}

func (s *PostgresStore) GetChatParticipants(ctx context.Context, chatID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY user_id`, chatID)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("query participants", "chatId", chatID, "err", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("scan participants", "chatId", chatID, "err", err)
	}
	if len(users) == 0 {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	return users, nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error) {
	members := in.Members()
	if len(members) == 0 {
		return nil, errs.ErrArgs.WrapMsg("chat needs at least one participant")
	}
	ts := now()
	c := model.Chat{
		ID:           s.gen.NextString(),
		Name:         in.Name,
		IsGroup:      in.IsGroup || len(members) > 2,
		Participants: members,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chats (id, name, is_group, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
			c.ID, c.Name, c.IsGroup, ts); err != nil {
			return err
		}
		rows := make([][]any, 0, len(members))
		for _, u := range members {
			rows = append(rows, []any{c.ID, u})
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"chat_participants"}, []string{"chat_id", "user_id"}, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("create chat", "err", err)
	}
	return &c, nil
}

// ListMessages 取最新 limit 条，按时间升序返回
func (s *PostgresStore) ListMessages(ctx context.Context, chatID string, limit int) ([]model.Message, error) {
	const q = `
SELECT id, chat_id, sender_id, content, type, file_url, file_name, created_at, temp_id FROM (
	SELECT id, chat_id, sender_id, content, type, COALESCE(file_url, '') AS file_url,
	       COALESCE(file_name, '') AS file_name, created_at, COALESCE(temp_id, '') AS temp_id
	FROM messages WHERE chat_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
) t ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, q, chatID, clampLimit(limit))
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("query messages", "chatId", chatID, "err", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Message, error) {
		var m model.Message
		err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Type, &m.FileURL, &m.FileName, &m.CreatedAt, &m.TempID)
		m.CreatedAt = m.CreatedAt.UTC()
		return m, err
	})
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("scan messages", "chatId", chatID, "err", err)
	}
	return msgs, nil
}

// UpsertReaction 用户属于消息所在会话时才写入
func (s *PostgresStore) UpsertReaction(ctx context.Context, messageID, userID, emoji string) (string, error) {
	var chatID string
	err := s.pool.QueryRow(ctx, `SELECT chat_id FROM messages WHERE id = $1`, messageID).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errs.ErrRecordNotFound.WrapMsg("message not found", "messageId", messageID)
	}
	if err != nil {
		return "", errs.ErrStorage.WrapMsg("lookup message", "messageId", messageID, "err", err)
	}

	const q = `
INSERT INTO reactions (message_id, user_id, emoji, created_at)
SELECT $1::text, $2::text, $3::text, $4::timestamptz
WHERE EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $5::text AND user_id = $2::text)
ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji`
	tag, err := s.pool.Exec(ctx, q, messageID, userID, emoji, now(), chatID)
	if err != nil {
		return "", errs.ErrStorage.WrapMsg("upsert reaction", "messageId", messageID, "err", err)
	}
	if tag.RowsAffected() == 0 {
		return "", errs.ErrNoPermission.WrapMsg("user is not a participant", "chatId", chatID, "userId", userID)
	}
	return chatID, nil
}

func (s *PostgresStore) ListReactions(ctx context.Context, messageID string) ([]model.Reaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT message_id, user_id, emoji, created_at FROM reactions WHERE message_id = $1 ORDER BY created_at, user_id`,
		messageID)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("query reactions", "messageId", messageID, "err", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Reaction, error) {
		var r model.Reaction
		err := row.Scan(&r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt)
		r.CreatedAt = r.CreatedAt.UTC()
		return r, err
	})
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("scan reactions", "messageId", messageID, "err", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
