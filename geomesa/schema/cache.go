package schema

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/geomesa/geomesa-core/geomesa"
)

// Cache is a read-mostly cache in front of Store: schema lookups and
// cardinality hints are read on every plan() call but change rarely, which
// is exactly the shape github.com/dgraph-io/ristretto targets (admission
// policy keeps hot keys resident under concurrent reads), unlike the
// planner's small short-TTL plan cache which stays a hand-rolled TTL map
// (evicting the oldest-stored entry when full) since
// it keys on whole predicates and evicts on a much shorter horizon.
type Cache struct {
	schemas       *ristretto.Cache
	cardinalities *ristretto.Cache
}

// NewCache builds a Cache sized for maxSchemas feature types and
// maxCardinalities attribute stats.
func NewCache(maxSchemas, maxCardinalities int64) (*Cache, error) {
	schemas, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxSchemas * 10,
		MaxCost:     maxSchemas,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("schema cache: %w", err)
	}
	cardinalities, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCardinalities * 10,
		MaxCost:     maxCardinalities,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cardinality cache: %w", err)
	}
	return &Cache{schemas: schemas, cardinalities: cardinalities}, nil
}

// Close releases both underlying ristretto caches.
func (c *Cache) Close() {
	c.schemas.Close()
	c.cardinalities.Close()
}

func (c *Cache) GetSchema(typeName string) (*geomesa.FeatureType, bool) {
	v, ok := c.schemas.Get(typeName)
	if !ok {
		return nil, false
	}
	ft, ok := v.(*geomesa.FeatureType)
	return ft, ok
}

func (c *Cache) PutSchema(typeName string, ft *geomesa.FeatureType) {
	c.schemas.Set(typeName, ft, 1)
}

func (c *Cache) InvalidateSchema(typeName string) {
	c.schemas.Del(typeName)
	c.cardinalities.Clear()
}

func (c *Cache) GetCardinality(typeName, attr string) (geomesa.Cardinality, bool) {
	v, ok := c.cardinalities.Get(cardinalityCacheKey(typeName, attr))
	if !ok {
		return 0, false
	}
	card, ok := v.(geomesa.Cardinality)
	return card, ok
}

func (c *Cache) PutCardinality(typeName, attr string, card geomesa.Cardinality) {
	c.cardinalities.Set(cardinalityCacheKey(typeName, attr), card, 1)
}

func cardinalityCacheKey(typeName, attr string) string {
	return typeName + "/" + attr
}
