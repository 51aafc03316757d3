// Command checkdeps verifies that the backing services configured in .env
// are reachable before the API is started.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xyz-asif/blindmatch/internal/config"
	"github.com/xyz-asif/blindmatch/internal/database"
	"github.com/xyz-asif/blindmatch/internal/pkg/cloudinary"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
	"github.com/xyz-asif/blindmatch/internal/pkg/push"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	failed := false

	fmt.Println("Checking MongoDB...")
	db, err := database.Connect(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("MongoDB: %v", err)
		failed = true
	} else {
		if err := db.Ping(ctx); err != nil {
			logger.Error("MongoDB ping: %v", err)
			failed = true
		} else {
			fmt.Printf("  ok (%s)\n", cfg.MongoDB)
		}
		_ = db.Disconnect(ctx)
	}

	fmt.Println("Checking Firebase messaging...")
	switch {
	case !cfg.PushEnabled:
		fmt.Println("  skipped (PUSH_ENABLED=false)")
	default:
		if _, err := push.NewFCM(ctx, cfg.FirebaseServiceAccountPath); err != nil {
			logger.Error("Firebase: %v", err)
			failed = true
		} else {
			fmt.Println("  ok")
		}
	}

	fmt.Println("Checking Cloudinary...")
	if cfg.CloudinaryCloudName == "" {
		fmt.Println("  skipped (photo uploads disabled)")
	} else if _, err := cloudinary.NewService(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryUploadFolder); err != nil {
		logger.Error("Cloudinary: %v", err)
		failed = true
	} else {
		fmt.Printf("  ok (cloud %s, folder %s)\n", cfg.CloudinaryCloudName, cfg.CloudinaryUploadFolder)
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("All configured services reachable")
}
