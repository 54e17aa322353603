// Package qdrant adapts a Qdrant collection to the vectorstore.Store
// capability, using the same client (github.com/qdrant/go-client)
// and collection-bootstrap/point-payload conventions common across
// this codebase's storage providers, simplified to the id+hash+version
// payload this engine needs (no metadata filter AST, since
// TemplateMatcher queries by embedding alone).
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/orbitretrieval/engine/vectorstore"
)

const (
	payloadContentHashKey = "content_hash"
	payloadVersionKey     = "version"
	payloadTemplateIDKey  = "template_id"
)

// idNamespace is a fixed namespace UUID used to derive a stable point
// id from an arbitrary template id string. Qdrant point ids must be
// either an unsigned integer or a UUID; template ids are neither, so
// each one is deterministically mapped to a UUID (uuid.NewSHA1 is
// stable across runs for the same input, which upsert idempotence
// depends on) and the original string is kept in the point payload so
// Query and GetAll can recover it.
var idNamespace = uuid.MustParse("6f6e7262-6974-5f74-656d-706c61746573")

func templateIDToPointUUID(templateID string) string {
	return uuid.NewSHA1(idNamespace, []byte(templateID)).String()
}

// Config configures the Qdrant-backed Store.
type Config struct {
	// Client is the Qdrant client instance. Required.
	Client *qdrant.Client

	// CollectionName is the collection holding one point per template.
	// Required.
	CollectionName string

	// Dimensions is the embedding dimensionality; used to create the
	// collection when InitializeSchema is true.
	Dimensions int

	// InitializeSchema creates the collection if it does not exist.
	InitializeSchema bool

	// Distance is the collection's distance metric. Only
	// qdrant.Distance_Cosine is accepted: the engine requires a
	// similarity score bounded to [0,1], and Qdrant's cosine metric is
	// the only one of its distance kinds that satisfies that bound
	// without additional normalization, so ambiguous metrics are
	// rejected outright rather than guessing a mapping.
	Distance qdrant.Distance
}

func (c *Config) validate() error {
	if c.Client == nil {
		return errors.New("qdrant: client is required")
	}
	if c.CollectionName == "" {
		return errors.New("qdrant: collection name is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("qdrant: dimensions must be positive")
	}
	if c.Distance == qdrant.Distance_UnknownDistance {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.Distance != qdrant.Distance_Cosine {
		return fmt.Errorf("qdrant: unsupported distance %v, only Distance_Cosine produces a [0,1] similarity", c.Distance)
	}
	return nil
}

var _ vectorstore.Store = (*Store)(nil)

// Store is a vectorstore.Store backed by a Qdrant collection.
type Store struct {
	client         *qdrant.Client
	collectionName string
	dimensions     int
}

// NewStore validates config, optionally creates the collection, and
// returns a ready Store.
func NewStore(ctx context.Context, config *Config) (*Store, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	store := &Store{
		client:         config.Client,
		collectionName: config.CollectionName,
		dimensions:     config.Dimensions,
	}

	if config.InitializeSchema {
		if err := store.ensureCollection(ctx, config.Distance); err != nil {
			return nil, fmt.Errorf("qdrant: failed to initialize collection: %w", err)
		}
	}

	return store, nil
}

func (s *Store) ensureCollection(ctx context.Context, distance qdrant.Distance) error {
	exists, err := s.client.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: distance,
		}),
	})
}

// Dimensions reports the configured embedding dimensionality.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Upsert writes or overwrites the point for record.ID, storing
// ContentHash and Version as payload so GetAll can diff against the
// live template library without re-reading embeddings.
func (s *Store) Upsert(ctx context.Context, record vectorstore.Record) error {
	payload, err := qdrant.TryValueMap(map[string]any{
		payloadContentHashKey: record.ContentHash,
		payloadVersionKey:     record.Version,
		payloadTemplateIDKey:  record.ID,
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to build payload for %s: %w", record.ID, err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(templateIDToPointUUID(record.ID)),
		Vectors: qdrant.NewVectors(record.Embedding...),
		Payload: payload,
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to upsert point %s: %w", record.ID, err)
	}
	return nil
}

// Delete removes the point for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionName,
		Points:         qdrant.NewPointsSelectorIDs([]*qdrant.PointId{qdrant.NewID(templateIDToPointUUID(id))}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to delete point %s: %w", id, err)
	}
	return nil
}

// Query returns up to k nearest points to embedding. Qdrant's scored
// result for a cosine-metric collection is already a similarity in
// [0,1] (1 = identical), so it is passed through unchanged rather than
// inverted from a distance.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]vectorstore.Match, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          ptrUint64(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to query collection %s: %w", s.collectionName, err)
	}

	matches := make([]vectorstore.Match, 0, len(points))
	for _, p := range points {
		id := templateIDFromPayload(p.GetPayload())
		if id == "" {
			continue
		}
		matches = append(matches, vectorstore.Match{
			ID:         id,
			Similarity: float64(p.GetScore()),
		})
	}
	return matches, nil
}

func templateIDFromPayload(payload map[string]*qdrant.Value) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[payloadTemplateIDKey]; ok {
		return v.GetStringValue()
	}
	return ""
}

// GetAll returns every stored point's id mapped to its content hash
// payload field, used by the engine's startup reconciliation to
// compute which templates need upserting or deleting.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	hashes := make(map[string]string)
	offset := (*qdrant.PointId)(nil)

	for {
		resp, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collectionName,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
			Offset:         offset,
			Limit:          ptrUint32(256),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: failed to scroll collection %s: %w", s.collectionName, err)
		}
		if len(resp) == 0 {
			break
		}

		for _, point := range resp {
			payload := point.GetPayload()
			id := templateIDFromPayload(payload)
			if id == "" {
				continue
			}
			if hashValue, ok := payload[payloadContentHashKey]; ok {
				hashes[id] = hashValue.GetStringValue()
			} else {
				hashes[id] = ""
			}
		}

		if len(resp) < 256 {
			break
		}
		offset = resp[len(resp)-1].GetId()
	}

	return hashes, nil
}

func ptrUint64(v uint64) *uint64 { return &v }
func ptrUint32(v uint32) *uint32 { return &v }
