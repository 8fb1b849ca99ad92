package post

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ( // Interfaces
	IMongoCollection interface {
		InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (IMongoInsertOneResult, error)
		DeleteMany(context.Context, interface{}, ...*options.DeleteOptions) (int64, error)
		FindOne(context.Context, interface{}, ...*options.FindOneOptions) IMongoSingleResult
		Find(context.Context, interface{}, ...*options.FindOptions) (IMongoCursor, error)
		CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
		Aggregate(context.Context, interface{}, ...*options.AggregateOptions) (IMongoCursor, error)
	}

	IMongoCursor interface {
		Close(context.Context) error
		All(context.Context, interface{}) error
	}

	IMongoSingleResult    interface{ Decode(interface{}) error }
	IMongoInsertOneResult interface{}
)

type ( // Structs
	MongoCursor struct{ cur *mongo.Cursor }

	MongoCollection struct {
		Coll *mongo.Collection
	}

	MongoSingleResult    struct{ res *mongo.SingleResult }
	MongoInsertOneResult struct{ res *mongo.InsertOneResult }
)

// MongoSingleResult

func (sr *MongoSingleResult) Decode(v interface{}) error {
	return sr.res.Decode(v)
}

// MongoCursor

func (cur *MongoCursor) Close(ctx context.Context) error {
	return cur.cur.Close(ctx)
}
func (cur *MongoCursor) All(ctx context.Context, results interface{}) error {
	return cur.cur.All(ctx, results)
}

// MongoCollection

func (col *MongoCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (IMongoInsertOneResult, error) {
	insertOneResult, err := col.Coll.InsertOne(ctx, document, opts...)
	if err != nil {
		return nil, err
	}
	return &MongoInsertOneResult{res: insertOneResult}, nil
}

func (col *MongoCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	deleteResult, err := col.Coll.DeleteMany(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return deleteResult.DeletedCount, nil
}

func (col *MongoCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) IMongoSingleResult {
	singleResult := col.Coll.FindOne(ctx, filter, opts...)
	return &MongoSingleResult{res: singleResult}
}

func (col *MongoCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (IMongoCursor, error) {
	cursorResult, err := col.Coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return &MongoCursor{cur: cursorResult}, nil
}

func (col *MongoCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return col.Coll.CountDocuments(ctx, filter, opts...)
}

func (col *MongoCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (IMongoCursor, error) {
	cursorResult, err := col.Coll.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	return &MongoCursor{cur: cursorResult}, nil
}
