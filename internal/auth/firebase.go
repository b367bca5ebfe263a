package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/sitecraft-ai/sitecraft-backend/config"
)

// Firebase bundles the Admin SDK clients the service uses.
type Firebase struct {
	Auth     *auth.Client
	Database *db.Client
}

var firebaseScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/cloud-platform",
}

// InitializeFirebase initializes the Firebase Admin SDK from a credentials
// file, or from application default credentials when no file is set.
func InitializeFirebase(ctx context.Context, cfg *config.FirebaseConfig) (*Firebase, error) {
	var opt option.ClientOption
	if cfg.CredentialsPath != "" {
		opt = option.WithCredentialsFile(cfg.CredentialsPath)
	} else {
		creds, err := google.FindDefaultCredentials(ctx, firebaseScopes...)
		if err != nil {
			return nil, fmt.Errorf("no FIREBASE_CREDENTIALS_PATH and no default credentials: %w", err)
		}
		opt = option.WithCredentials(creds)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	out := &Firebase{Auth: authClient}
	if cfg.DatabaseURL != "" {
		dbClient, err := app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get Database client: %w", err)
		}
		out.Database = dbClient
	}
	return out, nil
}
