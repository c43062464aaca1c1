package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fashionlens/fashion-lens-be/internal/models"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
)

var _ storage.UserStore = (*Store)(nil)

const (
	defaultDatabase   = "fashionlens"
	usersCollection   = "businessusers"
	disconnectTimeout = 5 * time.Second
)

// userDocument is the persisted shape of a business user.
type userDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	FullName struct {
		FirstName string `bson:"firstname"`
		LastName  string `bson:"lastname,omitempty"`
	} `bson:"fullname"`
	Email        string    `bson:"email"`
	Organization string    `bson:"organization"`
	Role         string    `bson:"role"`
	Password     string    `bson:"password"`
	SocketID     string    `bson:"socketId,omitempty"`
	Coins        int64     `bson:"coins"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// Store provides MongoDB-backed persistence for business users.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewUserStore connects to uri, verifies the connection and ensures indexes.
// The database name is taken from the URI path, falling back to "fashionlens".
func NewUserStore(ctx context.Context, uri string) (*Store, error) {
	dbName, err := parseDatabaseName(uri)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, users: client.Database(dbName).Collection(usersCollection)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() {
	if s.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

// CreateUser inserts a new user document.
// The role is checked here since the collection has no schema constraint.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if !user.Role.Valid() {
		return models.User{}, fmt.Errorf("insert user: unknown role %q", user.Role)
	}
	doc := toDocument(user)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return fromDocument(doc), nil
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

// FindByID fetches a user by its ObjectID hex string.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, storage.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// DebitCoins decrements the balance only when it covers amount.
func (s *Store) DebitCoins(ctx context.Context, id string, amount int64) (models.User, error) {
	if amount <= 0 {
		return models.User{}, storage.ErrInvalidAmount
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, storage.ErrNotFound
	}
	filter := bson.M{"_id": oid, "coins": bson.M{"$gte": amount}}
	update := bson.M{"$inc": bson.M{"coins": -amount}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDocument
	err = s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, findErr := s.FindByID(ctx, id); findErr != nil {
			return models.User{}, findErr
		}
		return models.User{}, storage.ErrInsufficientCoins
	}
	if err != nil {
		return models.User{}, fmt.Errorf("debit coins: %w", err)
	}
	return fromDocument(doc), nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return fromDocument(doc), nil
}

func toDocument(u models.User) userDocument {
	var doc userDocument
	doc.FullName.FirstName = u.FullName.FirstName
	doc.FullName.LastName = u.FullName.LastName
	doc.Email = strings.ToLower(u.Email)
	doc.Organization = u.Organization
	doc.Role = string(u.Role)
	doc.Password = u.PasswordHash
	doc.SocketID = u.SocketID
	doc.Coins = u.Coins
	return doc
}

func fromDocument(doc userDocument) models.User {
	return models.User{
		ID: doc.ID.Hex(),
		FullName: models.FullName{
			FirstName: doc.FullName.FirstName,
			LastName:  doc.FullName.LastName,
		},
		Email:        doc.Email,
		Organization: doc.Organization,
		Role:         models.Role(doc.Role),
		Coins:        doc.Coins,
		SocketID:     doc.SocketID,
		PasswordHash: doc.Password,
		CreatedAt:    doc.CreatedAt,
	}
}

func parseDatabaseName(uri string) (string, error) {
	if !IsMongoURL(uri) {
		return "", fmt.Errorf("parse mongo url: unsupported scheme in %q", redact(uri))
	}
	rest := uri[strings.Index(uri, "://")+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return defaultDatabase, nil
	}
	name := rest[slash+1:]
	if q := strings.IndexAny(name, "?#"); q >= 0 {
		name = name[:q]
	}
	if name == "" {
		return defaultDatabase, nil
	}
	return name, nil
}

// IsMongoURL reports whether uri uses a MongoDB connection-string scheme.
func IsMongoURL(uri string) bool {
	lower := strings.ToLower(strings.TrimSpace(uri))
	return strings.HasPrefix(lower, "mongodb://") || strings.HasPrefix(lower, "mongodb+srv://")
}

func redact(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "***" + uri[at:]
}
