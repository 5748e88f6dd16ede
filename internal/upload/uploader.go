package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"path"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/internal/upload")

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Object store used for cold retention of queue data
type Uploader interface {
	// Create / Overwrite object contents at `key`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error
	// Check if an object exists (focused on preventing uploading the same object twice, not authoritative)
	//
	// May always return false
	Exists(ctx context.Context, key string) (bool, error)
	// Provide an identifier for where objects are being uploaded to. Useful for logging.
	StoreIdentifier(ctx context.Context) (string, error)
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Stores `v` as JSON at `key` unless the key already exists.
//
// Returns whether anything was written.
func JSON(ctx context.Context, u Uploader, key string, v any) (bool, error) {
	ctx, span := tracer.Start(ctx, "UploadJSON", trace.WithAttributes(
		attribute.String("key", key),
	))
	defer span.End()

	exists, err := u.Exists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check if object exists")
		return false, err
	}

	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing object")
		return false, nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal object")
		return false, err
	}

	err = u.Upload(ctx, bytes.NewReader(body), int64(len(body)), key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload object")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded object")
	return true, nil
}
