//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/warin-ch/mediq/libs/db"
	"github.com/warin-ch/mediq/services/doctor-service/internal/storage"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *db.Pool, _ *storage.Repository) error {
	return nil
}
