package otel

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func attr(key string, val any) attribute.KeyValue {
	switch v := val.(type) {
	case nil:
		return attribute.Key(key).String("")
	case string:
		return attribute.Key(key).String(v)
	case bool:
		return attribute.Key(key).Bool(v)
	case int:
		return attribute.Key(key).Int64(int64(v))
	case int32:
		return attribute.Key(key).Int64(int64(v))
	case int64:
		return attribute.Key(key).Int64(v)
	case float64:
		return attribute.Key(key).Float64(v)
	case time.Duration:
		return attribute.Key(key).Int64(v.Milliseconds())
	case []string:
		return attribute.Key(key).StringSlice(v)
	case error:
		return attribute.Key(key).String(v.Error())
	case fmt.Stringer:
		return attribute.Key(key).String(v.String())
	default:
		return attribute.Key(key).String(fmt.Sprintf("%v", v))
	}
}
