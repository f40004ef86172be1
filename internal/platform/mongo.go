package platform

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/xxxsen/pagelift/internal/filestore"
	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
)

// MongoClient writes destination documents straight into the platform's
// MongoDB database and its file store. Localized fields are stored as
// per-locale sub-documents ({"title": {"en": ...}}), matching how the
// platform itself persists them.
type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
	files  filestore.Store
}

func NewMongo(ctx context.Context, uri, database string, files filestore.Store) (*MongoClient, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	return &MongoClient{
		client: client,
		db:     client.Database(database),
		files:  files,
	}, nil
}

func (c *MongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *MongoClient) Create(ctx context.Context, collection, locale string, data map[string]any, file *Upload) (string, error) {
	id := primitive.NewObjectID()
	now := time.Now()
	doc := bson.M{
		"_id":       id,
		MarkerField: MarkerValue,
		"createdAt": now,
		"updatedAt": now,
	}
	for field, value := range data {
		if isLocalized(collection, field) && locale != "" {
			doc[field] = bson.M{locale: value}
			continue
		}
		doc[field] = value
	}
	if file != nil {
		name, url, err := c.storeUpload(ctx, collection, file)
		if err != nil {
			return "", err
		}
		doc["filename"] = name
		doc["url"] = url
		doc["mimeType"] = file.MimeType
		doc["filesize"] = file.Size
	}
	if _, err := c.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id.Hex(), nil
}

func (c *MongoClient) Update(ctx context.Context, collection, id, locale string, data map[string]any, file *Upload) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: document id %q", appErr.ErrInvalid, id)
	}
	set := bson.M{"updatedAt": time.Now()}
	for field, value := range data {
		if isLocalized(collection, field) && locale != "" {
			set[field+"."+locale] = value
			continue
		}
		set[field] = value
	}
	if file != nil {
		name, url, err := c.storeUpload(ctx, collection, file)
		if err != nil {
			return err
		}
		set["filename"] = name
		set["url"] = url
		set["mimeType"] = file.MimeType
		set["filesize"] = file.Size
	}
	res, err := c.db.Collection(collection).UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", appErr.ErrNotFound, collection, id)
	}
	return nil
}

func (c *MongoClient) Find(ctx context.Context, collection, locale string, where Where, limit int) (*FindResult, error) {
	filter := buildFilter(collection, locale, where)
	coll := c.db.Collection(collection)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", collection, err)
	}

	findOpts := options.Find().SetSort(bson.M{"_id": 1})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := make([]Document, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s doc: %w", collection, err)
		}
		docs = append(docs, toDocument(collection, locale, raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return &FindResult{Docs: docs, TotalDocs: int(total)}, nil
}

func (c *MongoClient) FindByID(ctx context.Context, collection, id string) (*Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: document id %q", appErr.ErrInvalid, id)
	}
	var raw bson.M
	err = c.db.Collection(collection).FindOne(ctx, bson.M{"_id": oid}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s/%s", appErr.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	doc := toDocument(collection, "", raw)
	return &doc, nil
}

func (c *MongoClient) Delete(ctx context.Context, collection, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: document id %q", appErr.ErrInvalid, id)
	}
	res, err := c.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s/%s", appErr.ErrNotFound, collection, id)
	}
	return nil
}

// buildFilter translates a Where clause into a mongo filter, routing
// localized fields to their per-locale path. Contains matches literally, so
// regex metacharacters in the needle are escaped.
func buildFilter(collection, locale string, where Where) bson.M {
	filter := bson.M{}
	for field, cond := range where {
		target := field
		if isLocalized(collection, field) && locale != "" {
			target = field + "." + locale
		}
		if cond.Contains != "" {
			filter[target] = bson.M{"$regex": regexp.QuoteMeta(cond.Contains)}
			continue
		}
		filter[target] = cond.Equals
	}
	return filter
}

// toDocument converts a raw BSON document, flattening localized fields to the
// requested locale so callers see plain values the way the platform API
// would return them. Without a locale the sub-documents come back as-is.
// Values are normalized to plain Go types so consumers never touch driver
// types.
func toDocument(collection, locale string, raw bson.M) Document {
	doc := Document{Data: map[string]any{}}
	for key, value := range raw {
		if key == "_id" {
			if oid, ok := value.(primitive.ObjectID); ok {
				doc.ID = oid.Hex()
				continue
			}
		}
		norm := normalizeValue(value)
		if locale != "" && isLocalized(collection, key) {
			if byLocale, ok := norm.(map[string]any); ok {
				doc.Data[key] = byLocale[locale]
				continue
			}
		}
		doc.Data[key] = norm
	}
	return doc
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for key, val := range t {
			out[key] = normalizeValue(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, 0, len(t))
		for _, val := range t {
			out = append(out, normalizeValue(val))
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

func (c *MongoClient) storeUpload(ctx context.Context, collection string, file *Upload) (string, string, error) {
	name := sanitizeFilename(file.Filename)
	taken, err := c.filenameTaken(ctx, collection, name)
	if err != nil {
		return "", "", err
	}
	if taken {
		name = suffixFilename(name)
	}
	reader := &uploadFile{bytes.NewReader(file.Data)}
	if err := c.files.Save(ctx, name, reader, file.Size); err != nil {
		return "", "", fmt.Errorf("store upload %s: %w", name, err)
	}
	return name, c.files.URL(name), nil
}

func (c *MongoClient) filenameTaken(ctx context.Context, collection, name string) (bool, error) {
	count, err := c.db.Collection(collection).CountDocuments(ctx, bson.M{"filename": name})
	if err != nil {
		return false, fmt.Errorf("probe filename %s: %w", name, err)
	}
	return count > 0, nil
}

type uploadFile struct {
	*bytes.Reader
}

func (*uploadFile) Close() error { return nil }

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = strings.ToLower(path.Base(strings.TrimSpace(name)))
	name = unsafeFilenameChars.ReplaceAllString(name, "-")
	name = strings.ReplaceAll(name, "-.", ".")
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "upload"
	}
	return name
}

// suffixFilename disambiguates a colliding upload name the same way a live
// platform upload would: short random suffix before the extension.
func suffixFilename(name string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%s%s", base, hex.EncodeToString(buf), ext)
}
