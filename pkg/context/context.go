package context

import (
	"context"

	"github.com/Ramsey-B/vine/pkg/tracing"
)

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	UserIDKey    = ContextKey("X-User-Id")
	ImportIDKey  = ContextKey("X-Import-Id")
	SupplierKey  = ContextKey("X-Supplier-Id")
)

func getString(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// SetUserID records the acting reviewer. Resolution falls back to it when a decision does not
// name who resolved the item.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return getString(ctx, UserIDKey)
}

func SetImportID(ctx context.Context, importID string) context.Context {
	return context.WithValue(ctx, ImportIDKey, importID)
}

func GetImportID(ctx context.Context) string {
	return getString(ctx, ImportIDKey)
}

func SetSupplierID(ctx context.Context, supplierID string) context.Context {
	return context.WithValue(ctx, SupplierKey, supplierID)
}

func GetSupplierID(ctx context.Context) string {
	return getString(ctx, SupplierKey)
}

// LogFields returns the ids carried by ctx, plus the active trace id, as log fields.
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	for key, name := range map[ContextKey]string{
		RequestIDKey: "request_id",
		UserIDKey:    "user_id",
		ImportIDKey:  "import_id",
		SupplierKey:  "supplier_id",
	} {
		if v := getString(ctx, key); v != "" {
			fields[name] = v
		}
	}
	return fields
}
