package store

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	defaultMongoDatabase = "local"
	usersCollection      = "users"
	messagesCollection   = "messages"
	mongoConnectTimeout  = 10 * time.Second
)

// userDocument is the stored form of a user. Only the id matters.
type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type authorDocument struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name,omitempty"`
	Avatar string `bson:"avatar,omitempty"`
}

// messageDocument is the stored form of a chat message.
type messageDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	User      authorDocument     `bson:"user"`
	CreatedAt time.Time          `bson:"createdAt"`
	ChatID    int64              `bson:"chatId"`
}

func (d messageDocument) toDomain() domain.Message {
	return domain.Message{
		ID:   d.ID.Hex(),
		Text: d.Text,
		User: domain.Author{
			ID:     d.User.ID,
			Name:   d.User.Name,
			Avatar: d.User.Avatar,
		},
		CreatedAt: d.CreatedAt.UTC(),
		ChatID:    d.ChatID,
	}
}

// MongoStore persists users and messages in MongoDB.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	messages *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// OpenMongo connects to uri and prepares the collections. The database name
// is taken from the connection string path.
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongo url: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:   client,
		users:    db.Collection(usersCollection),
		messages: db.Collection(messagesCollection),
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create messages index: %w", err)
	}

	return s, nil
}

// CreateUser inserts an empty user document and returns its generated id.
func (s *MongoStore) CreateUser(ctx context.Context) (string, error) {
	res, err := s.users.InsertOne(ctx, userDocument{CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected user id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// UserExists reports whether userID names a stored user. Ids that are not
// valid ObjectIDs never exist.
func (s *MongoStore) UserExists(ctx context.Context, userID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return false, nil
	}
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return n > 0, nil
}

// InsertMessage stores msg and sets its ID.
func (s *MongoStore) InsertMessage(ctx context.Context, msg *domain.Message) error {
	doc := messageDocument{
		Text: msg.Text,
		User: authorDocument{
			ID:     msg.User.ID,
			Name:   msg.User.Name,
			Avatar: msg.User.Avatar,
		},
		CreatedAt: msg.CreatedAt,
		ChatID:    msg.ChatID,
	}
	res, err := s.messages.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid.Hex()
	}
	// Mongo keeps millisecond precision.
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)
	return nil
}

// FindMessages returns the room's messages sorted by createdAt ascending.
func (s *MongoStore) FindMessages(ctx context.Context, roomID int64) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"chatId": roomID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	result := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.toDomain())
	}
	return result, nil
}

// Ping checks the connection to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
