// Package registry exposes the data source registry: the catalog of
// retrievable sources, their retrieval methods, and the parameter schemas a
// widget configuration is validated against.
package registry

import (
	"context"

	"github.com/alexwday/report-designer/internal/common/errors"
)

// ItemConstraint restricts the elements of an array parameter.
type ItemConstraint struct {
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// ParameterDef is the schema for a single retrieval method parameter.
type ParameterDef struct {
	Key      string          `json:"key"`
	Type     string          `json:"type"`
	Required bool            `json:"required"`
	Options  []string        `json:"options,omitempty"`
	Items    *ItemConstraint `json:"items,omitempty"`
	Default  interface{}     `json:"default,omitempty"`
	Prompt   string          `json:"prompt,omitempty"`
}

// RetrievalMethod is one way of querying a data source.
type RetrievalMethod struct {
	MethodID    string         `json:"method_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  []ParameterDef `json:"parameters"`
	Returns     string         `json:"returns,omitempty"`
}

// DataSource is a registry entry.
type DataSource struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Category         string            `json:"category,omitempty"`
	RetrievalMethods []RetrievalMethod `json:"retrieval_methods"`
	SuggestedWidgets []string          `json:"suggested_widgets,omitempty"`
	IsActive         bool              `json:"is_active"`
}

// Method returns the retrieval method with the given ID, or nil.
func (d *DataSource) Method(methodID string) *RetrievalMethod {
	for i := range d.RetrievalMethods {
		if d.RetrievalMethods[i].MethodID == methodID {
			return &d.RetrievalMethods[i]
		}
	}
	return nil
}

// Registry looks up data sources and their retrieval methods.
type Registry interface {
	// GetDataSource returns the registry entry for sourceID, or a
	// DATA_SOURCE_NOT_FOUND error.
	GetDataSource(ctx context.Context, sourceID string) (*DataSource, error)

	// MethodDetails resolves a (source, method) pair in one call.
	MethodDetails(ctx context.Context, sourceID, methodID string) (*DataSource, *RetrievalMethod, error)

	// ListDataSources returns every active registry entry.
	ListDataSources(ctx context.Context) ([]DataSource, error)
}

// methodDetails implements MethodDetails on top of GetDataSource; shared by
// every backend.
func methodDetails(ctx context.Context, r Registry, sourceID, methodID string) (*DataSource, *RetrievalMethod, error) {
	source, err := r.GetDataSource(ctx, sourceID)
	if err != nil {
		return nil, nil, err
	}
	method := source.Method(methodID)
	if method == nil {
		return nil, nil, errors.NewRetrievalMethodNotFoundError(sourceID, methodID)
	}
	return source, method, nil
}
