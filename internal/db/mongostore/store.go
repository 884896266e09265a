// Package mongostore stores score, standing and bracket documents in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gokatarajesh/trivia-night/internal/domain"
)

// Store keeps each kind of document in its own collection. The brackets
// collection holds one metadata document (_md: true) next to the match documents.
type Store struct {
	Client      *mongo.Client
	Database    *mongo.Database
	Collections struct {
		Scores    *mongo.Collection
		Standings *mongo.Collection
		Brackets  *mongo.Collection
	}
}

// Connect dials uri and opens dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewStore(client, dbName), nil
}

// NewStore binds the collections of dbName.
func NewStore(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	s := &Store{Client: client, Database: db}
	s.Collections.Scores = db.Collection("scores")
	s.Collections.Standings = db.Collection("standings")
	s.Collections.Brackets = db.Collection("brackets")
	return s
}

// EnsureIndexes creates the lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.Collections.Scores.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "r", Value: 1}, {Key: "q", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("index scores: %w", err)
	}
	if _, err := s.Collections.Standings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ts", Value: -1}},
	}); err != nil {
		return fmt.Errorf("index standings: %w", err)
	}
	if _, err := s.Collections.Brackets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "round", Value: 1}, {Key: "game", Value: 1}},
	}); err != nil {
		return fmt.Errorf("index brackets: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// SaveScores replaces the record for the round and question.
func (s *Store) SaveScores(ctx context.Context, rec domain.ScoreRecord) error {
	filter := bson.M{"r": rec.Round, "q": rec.Question}
	_, err := s.Collections.Scores.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
	return err
}

// ListScores returns the records of a round ordered by question.
func (s *Store) ListScores(ctx context.Context, round int) ([]domain.ScoreRecord, error) {
	cur, err := s.Collections.Scores.Find(ctx, bson.M{"r": round}, options.Find().SetSort(bson.D{{Key: "q", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []domain.ScoreRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SavePublished appends a published standing.
func (s *Store) SavePublished(ctx context.Context, p domain.PublishedStanding) error {
	_, err := s.Collections.Standings.InsertOne(ctx, p)
	return err
}

// LatestPublished returns the newest published standing, or nil.
func (s *Store) LatestPublished(ctx context.Context) (*domain.PublishedStanding, error) {
	var p domain.PublishedStanding
	err := s.Collections.Standings.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}})).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// matchFilter excludes the metadata document.
func matchFilter(extra bson.M) bson.M {
	f := bson.M{"_md": bson.M{"$ne": true}}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// ReplaceBracket drops every bracket document and writes the new set.
func (s *Store) ReplaceBracket(ctx context.Context, meta domain.BracketMetadata, matches []domain.MatchRecord) error {
	if _, err := s.Collections.Brackets.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear brackets: %w", err)
	}
	meta.IsMetadata = true
	if _, err := s.Collections.Brackets.InsertOne(ctx, meta); err != nil {
		return fmt.Errorf("insert bracket metadata: %w", err)
	}
	if len(matches) == 0 {
		return nil
	}
	docs := make([]any, len(matches))
	for i, m := range matches {
		docs[i] = m
	}
	if _, err := s.Collections.Brackets.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert matches: %w", err)
	}
	return nil
}

// Metadata returns the bracket metadata, or nil.
func (s *Store) Metadata(ctx context.Context) (*domain.BracketMetadata, error) {
	var meta domain.BracketMetadata
	err := s.Collections.Brackets.FindOne(ctx, bson.M{"_md": true}).Decode(&meta)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// FindMatch returns the match of round that contains seed, or nil.
func (s *Store) FindMatch(ctx context.Context, round, seed int) (*domain.MatchRecord, error) {
	var m domain.MatchRecord
	err := s.Collections.Brackets.FindOne(ctx, matchFilter(bson.M{"round": round, "seeds": seed})).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMatches returns the matches of a round ordered by game number.
func (s *Store) ListMatches(ctx context.Context, round int) ([]domain.MatchRecord, error) {
	cur, err := s.Collections.Brackets.Find(ctx, matchFilter(bson.M{"round": round}), options.Find().SetSort(bson.D{{Key: "game", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []domain.MatchRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMatch upserts a match by bracket, round and index.
func (s *Store) SaveMatch(ctx context.Context, m domain.MatchRecord) error {
	filter := matchFilter(bson.M{"bracket": m.Bracket, "round": m.Round, "index": m.Index})
	_, err := s.Collections.Brackets.ReplaceOne(ctx, filter, m, options.Replace().SetUpsert(true))
	return err
}
