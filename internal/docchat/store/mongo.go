package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/component/mongodb"
	"github.com/kart-io/docchat/pkg/errors"
)

const sessionCollection = "sessions"

// MongoSessionStore 基于 MongoDB 实现 SessionStore。
// 消息与文档内嵌在会话文档中，写入用 $push/$pull 原子更新。
type MongoSessionStore struct {
	coll *mongo.Collection
}

// 确保 MongoSessionStore 实现了 SessionStore 接口。
var _ SessionStore = (*MongoSessionStore)(nil)

// NewMongoSessionStore 创建 MongoSessionStore。
func NewMongoSessionStore(client *mongodb.Client) *MongoSessionStore {
	return &MongoSessionStore{
		coll: client.Collection(sessionCollection),
	}
}

// Create 创建新会话。
func (s *MongoSessionStore) Create(ctx context.Context, session *model.Session) error {
	if session.Messages == nil {
		session.Messages = []model.Message{}
	}
	if session.Documents == nil {
		session.Documents = []model.Document{}
	}
	if _, err := s.coll.InsertOne(ctx, session); err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	return nil
}

// Get 查询单个会话。
func (s *MongoSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrSessionNotFound
		}
		return nil, errors.ErrInternal.WithCause(err)
	}
	return &session, nil
}

// List 按更新时间倒序返回全部会话。
func (s *MongoSessionStore) List(ctx context.Context) ([]model.Session, error) {
	opts := mongoopts.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	defer cursor.Close(ctx)

	sessions := []model.Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return sessions, nil
}

// Rename 修改会话标题。
func (s *MongoSessionStore) Rename(ctx context.Context, id, title string) error {
	update := bson.M{"$set": bson.M{"title": title, "updated_at": time.Now().UTC()}}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// Delete 删除会话文档。
func (s *MongoSessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if result.DeletedCount == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// AppendMessage 追加一条消息并刷新 updated_at。
func (s *MongoSessionStore) AppendMessage(ctx context.Context, id string, msg model.Message) error {
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// AddDocument 记录一份已入库文档。
func (s *MongoSessionStore) AddDocument(ctx context.Context, id string, doc model.Document) error {
	update := bson.M{
		"$push": bson.M{"documents": doc},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// RemoveDocument 移除文档记录。
func (s *MongoSessionStore) RemoveDocument(ctx context.Context, id, docID string) error {
	update := bson.M{
		"$pull": bson.M{"documents": bson.M{"id": docID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}
