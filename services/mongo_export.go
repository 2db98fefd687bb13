package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB database and collection names
const (
	MongoDBName             = "stock_etl"
	MongoFeaturesCollection = "feature_summaries"
)

// MongoExporter mirrors per-symbol feature summaries into MongoDB
// when MONGODB_URI is configured. The exporter is optional: with no
// URI set every export is a no-op.
type MongoExporter struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
	uriSet      bool
	lastError   string
}

// FeatureSummary is the per-symbol document written after each
// compute_features run.
type FeatureSummary struct {
	Symbol       string    `bson:"_id" json:"symbol"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
	BarCount     int       `bson:"bar_count" json:"bar_count"`
	LastDate     string    `bson:"last_date" json:"last_date"`
	LastClose    float64   `bson:"last_close" json:"last_close"`
	SMA10        *float64  `bson:"sma_10,omitempty" json:"sma_10"`
	SMA50        *float64  `bson:"sma_50,omitempty" json:"sma_50"`
	RSI14        *float64  `bson:"rsi_14,omitempty" json:"rsi_14"`
	DailyReturn  *float64  `bson:"daily_return,omitempty" json:"daily_return"`
	Volatility30 *float64  `bson:"volatility_30,omitempty" json:"volatility_30"`
}

// Global MongoDB exporter instance
var GlobalMongoExporter *MongoExporter

// InitMongoExporter initializes the MongoDB exporter
func InitMongoExporter() error {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Println("MONGODB_URI not set, MongoDB export disabled")
		GlobalMongoExporter = &MongoExporter{
			uriSet:    false,
			lastError: "MONGODB_URI environment variable not set",
		}
		return nil
	}

	GlobalMongoExporter = &MongoExporter{uriSet: true}
	return GlobalMongoExporter.Connect()
}

// Connect establishes the MongoDB connection
func (m *MongoExporter) Connect() error {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		m.lastError = "MONGODB_URI environment variable not set"
		return fmt.Errorf("%s", m.lastError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		m.lastError = err.Error()
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		m.lastError = err.Error()
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.database = client.Database(MongoDBName)
	m.isConnected = true
	m.lastError = ""
	m.mu.Unlock()

	log.Println("MongoDB exporter connected")
	return nil
}

// IsEnabled reports whether the exporter has a live connection
func (m *MongoExporter) IsEnabled() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uriSet && m.isConnected
}

// Close disconnects from MongoDB
func (m *MongoExporter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.isConnected = false
	return m.client.Disconnect(ctx)
}

// SaveFeatureSummaries upserts one document per symbol
func (m *MongoExporter) SaveFeatureSummaries(ctx context.Context, summaries []FeatureSummary) error {
	if !m.IsEnabled() {
		return nil
	}

	m.mu.RLock()
	collection := m.database.Collection(MongoFeaturesCollection)
	m.mu.RUnlock()

	for _, summary := range summaries {
		filter := bson.M{"_id": summary.Symbol}
		opts := options.Replace().SetUpsert(true)
		if _, err := collection.ReplaceOne(ctx, filter, summary, opts); err != nil {
			return fmt.Errorf("failed to export summary for %s: %w", summary.Symbol, err)
		}
	}

	log.Printf("Exported %d feature summaries to MongoDB", len(summaries))
	return nil
}
