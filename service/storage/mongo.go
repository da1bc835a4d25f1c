package storage

import (
	"context"
	"errors"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
	"PPChat/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

// MongoStore 会话、消息、表情回应分别存三个集合
type MongoStore struct {
	cli       *mongo.Client
	chats     *mongo.Collection
	messages  *mongo.Collection
	reactions *mongo.Collection
	gen       *ids.Generator
}

type mongoReaction struct {
	ID        string    `bson:"_id"`
	MessageID string    `bson:"message_id"`
	UserID    string    `bson:"user_id"`
	Emoji     string    `bson:"emoji"`
	CreatedAt time.Time `bson:"created_at"`
}

func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errs.ErrArgs.WrapMsg("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "ppchat"
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("connect mongo", "err", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, errs.ErrStorage.WrapMsg("ping mongo", "err", err)
	}
	db := cli.Database(cfg.Database)
	return &MongoStore{
		cli:       cli,
		chats:     db.Collection(model.ChatTableName),
		messages:  db.Collection(model.MsgTableName),
		reactions: db.Collection(model.ReactionTableName),
		gen:       ids.NewGenerator(1),
	}, nil
}

func (s *MongoStore) WithGenerator(g *ids.Generator) *MongoStore {
	s.gen = g
	return s
}

// EnsureIndexes 创建查询所需索引
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return errs.ErrStorage.WrapMsg("index messages", "err", err)
	}
	if _, err := s.chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}},
	}); err != nil {
		return errs.ErrStorage.WrapMsg("index chats", "err", err)
	}
	if _, err := s.reactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "message_id", Value: 1}},
	}); err != nil {
		return errs.ErrStorage.WrapMsg("index reactions", "err", err)
	}
	return nil
}

func (s *MongoStore) isParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	n, err := s.chats.CountDocuments(ctx, bson.M{"_id": chatID, "participants": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, errs.ErrStorage.WrapMsg("check participant", "chatId", chatID, "err", err)
	}
	return n > 0, nil
}

func (s *MongoStore) CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	ok, err := s.isParticipant(ctx, in.ChatID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNoPermission.WrapMsg("sender is not a participant", "chatId", in.ChatID, "senderId", in.SenderID)
	}
	m := model.Message{
		ID:        s.gen.NextString(),
		ChatID:    in.ChatID,
		SenderID:  in.SenderID,
		Content:   in.Content,
		Type:      in.Type,
		FileURL:   in.FileURL,
		FileName:  in.FileName,
		TempID:    in.TempID,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return nil, errs.ErrStorage.WrapMsg("insert message", "chatId", in.ChatID, "err", err)
	}
	return &m, nil
}

func (s *MongoStore) UpdateChatActivity(ctx context.Context, chatID string, at time.Time) error {
	res, err := s.chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{"$max": bson.M{"updated_at": at.UTC()}})
	if err != nil {
		return errs.ErrStorage.WrapMsg("update chat activity", "chatId", chatID, "err", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	return nil
}

func (s *MongoStore) GetChatParticipants(ctx context.Context, chatID string) ([]string, error) {
	var c model.Chat
	err := s.chats.FindOne(ctx, bson.M{"_id": chatID},
		options.FindOne().SetProjection(bson.M{"participants": 1})).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("find chat", "chatId", chatID, "err", err)
	}
	return c.Participants, nil
}

func (s *MongoStore) CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error) {
	members := in.Members()
	if len(members) == 0 {
		return nil, errs.ErrArgs.WrapMsg("chat needs at least one participant")
	}
	ts := time.Now().UTC().Truncate(time.Millisecond)
	c := model.Chat{
		ID:           s.gen.NextString(),
		Name:         in.Name,
		IsGroup:      in.IsGroup || len(members) > 2,
		Participants: members,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if _, err := s.chats.InsertOne(ctx, c); err != nil {
		return nil, errs.ErrStorage.WrapMsg("insert chat", "err", err)
	}
	return &c, nil
}

func (s *MongoStore) ListMessages(ctx context.Context, chatID string, limit int) ([]model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))
	cur, err := s.messages.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("find messages", "chatId", chatID, "err", err)
	}
	var msgs []model.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errs.ErrStorage.WrapMsg("decode messages", "chatId", chatID, "err", err)
	}
	// 查询按新到旧，返回给调用方时转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *MongoStore) UpsertReaction(ctx context.Context, messageID, userID, emoji string) (string, error) {
	var m model.Message
	err := s.messages.FindOne(ctx, bson.M{"_id": messageID},
		options.FindOne().SetProjection(bson.M{"chat_id": 1})).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", errs.ErrRecordNotFound.WrapMsg("message not found", "messageId", messageID)
	}
	if err != nil {
		return "", errs.ErrStorage.WrapMsg("find message", "messageId", messageID, "err", err)
	}
	ok, err := s.isParticipant(ctx, m.ChatID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.ErrNoPermission.WrapMsg("user is not a participant", "chatId", m.ChatID, "userId", userID)
	}

	_, err = s.reactions.UpdateOne(ctx,
		bson.M{"_id": messageID + ":" + userID},
		bson.M{
			"$set":         bson.M{"emoji": emoji},
			"$setOnInsert": bson.M{"message_id": messageID, "user_id": userID, "created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return "", errs.ErrStorage.WrapMsg("upsert reaction", "messageId", messageID, "err", err)
	}
	return m.ChatID, nil
}

func (s *MongoStore) ListReactions(ctx context.Context, messageID string) ([]model.Reaction, error) {
	cur, err := s.reactions.Find(ctx, bson.M{"message_id": messageID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("find reactions", "messageId", messageID, "err", err)
	}
	var docs []mongoReaction
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.ErrStorage.WrapMsg("decode reactions", "messageId", messageID, "err", err)
	}
	out := make([]model.Reaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Reaction{MessageID: d.MessageID, UserID: d.UserID, Emoji: d.Emoji, CreatedAt: d.CreatedAt.UTC()})
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.cli.Disconnect(ctx)
}
