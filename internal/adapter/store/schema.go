package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"examprep/internal/domain"
)

// CurrentSchemaVersion is the on-disk layout version written at binding.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchemaInfo = []byte("info")

// SchemaInfo is recorded once per collection by its first write and checked
// by every later one.
type SchemaInfo struct {
	Version   int           `json:"version"`
	ID        string        `json:"id"`
	Dimension int           `json:"dimension"`
	Metric    domain.Metric `json:"metric"`
	Model     string        `json:"model,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Bound reports whether the schema has been established.
func (s SchemaInfo) Bound() bool {
	return s.Dimension > 0
}

func newSchema(dim int, metric domain.Metric, model string) SchemaInfo {
	return SchemaInfo{
		Version:   CurrentSchemaVersion,
		ID:        uuid.NewString(),
		Dimension: dim,
		Metric:    metric,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

func readSchema(b *bbolt.Bucket) (SchemaInfo, error) {
	var info SchemaInfo
	data := b.Get(keySchemaInfo)
	if data == nil {
		return info, nil
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decode schema: %w", err)
	}
	return info, nil
}

func writeSchema(b *bbolt.Bucket, info SchemaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return b.Put(keySchemaInfo, data)
}

// ModelCheck describes whether the configured embedding model still matches
// the one a collection was built with.
type ModelCheck struct {
	NeedsRebuild bool
	BoundModel   string
	Model        string
	Reason       string
}

// CheckModel compares model against the collection's bound schema. An
// unbound collection never needs a rebuild.
func (c *Collection) CheckModel(model string) ModelCheck {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := ModelCheck{BoundModel: c.schema.Model, Model: model}

	switch {
	case !c.schema.Bound():
	case c.schema.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("collection written by newer version (v%d > v%d)", c.schema.Version, CurrentSchemaVersion)
	case c.schema.Model != "" && model != "" && c.schema.Model != model:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding model changed from %s to %s", c.schema.Model, model)
	}

	return result
}
