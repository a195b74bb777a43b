package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rl1809/storefront/internal/core/domain"
)

type productDocument struct {
	Barcode  string  `bson:"barcode"`
	Article  string  `bson:"article"`
	Name     string  `bson:"name"`
	Price    float64 `bson:"price"`
	Quantity int     `bson:"quantity"`
}

// MongoSource reads products from a MongoDB collection.
type MongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoSource(ctx context.Context, uri, database, collection string) (*MongoSource, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoSource{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoSource) Name() string {
	return "mongodb:" + s.collection.Name()
}

func (s *MongoSource) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "article", Value: 1}, {Key: "barcode", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, domain.Product{
			Barcode:   d.Barcode,
			Article:   d.Article,
			Name:      d.Name,
			UnitPrice: decimal.NewFromFloat(d.Price).Round(2),
			Available: d.Quantity,
		})
	}
	return products, nil
}

func (s *MongoSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
