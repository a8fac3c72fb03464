package service

import (
	"context"
	"fmt"
)

// GraphDatabase is the subset of a Cypher database the bigram graph needs
type GraphDatabase interface {
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
	ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// executeSingle runs query and expects exactly one record back
func executeSingle(records []map[string]any, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no records returned")
	}

	if len(records) > 1 {
		return nil, fmt.Errorf("expected single record, got %d", len(records))
	}

	return records[0], nil
}

// toInt64 converts the integer types returned by the graph drivers
func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// toFloat64 converts the numeric types returned by the graph drivers
func toFloat64(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
