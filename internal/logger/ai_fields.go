package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldVendor is the structured log field key for the LLM vendor.
	FieldVendor = "ai_vendor"
	// FieldModel is the structured log field key for the LLM model identifier.
	FieldModel = "ai_model"
	// FieldExecution identifies a persisted analysis.
	FieldExecution = "execution_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// VendorFields returns the fields describing the LLM vendor and model.
// Empty values are skipped.
func VendorFields(vendor, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldVendor, Value: vendor},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithVendor attaches the vendor fields to the logger.
func WithVendor(logger *zap.Logger, vendor, model string) *zap.Logger {
	return WithFields(logger, VendorFields(vendor, model)...)
}
