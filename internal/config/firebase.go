package config

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"slices"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type ServiceAccountCredentials struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
	UniverseDomain          string `json:"universe_domain"`
}

type FirebaseConfig struct {
	ProjectID   string
	Credentials ServiceAccountCredentials
	// CredentialsFile, when set, takes precedence over the inline service
	// account variables.
	CredentialsFile string
}

// FirebaseClient bundles the Firestore and Cloud Messaging clients of one
// Firebase app.
type FirebaseClient struct {
	App       *firebase.App
	Firestore *firestore.Client
	Messaging *messaging.Client
}

var FirebaseConnection *FirebaseClient

var errMissingFirebaseEnv = errors.New("missing required Firebase config environment variables")

func NewFirebaseClient(ctx context.Context, config *FirebaseConfig) (*FirebaseClient, error) {
	var opt option.ClientOption
	if config.CredentialsFile != "" {
		opt = option.WithCredentialsFile(config.CredentialsFile)
	} else {
		credentialsJSON, err := json.Marshal(config.Credentials)
		if err != nil {
			slog.Error("Failed to marshal Firebase credentials", slog.Any("error", err))
			return nil, err
		}
		opt = option.WithCredentialsJSON(credentialsJSON)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: config.ProjectID}, opt)
	if err != nil {
		slog.Error("Failed to create Firebase app", slog.Any("error", err))
		return nil, err
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		slog.Error("Failed to create Firestore client", slog.Any("error", err))
		return nil, err
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		slog.Error("Failed to create Messaging client", slog.Any("error", err))
		_ = firestoreClient.Close()
		return nil, err
	}

	return &FirebaseClient{
		App:       app,
		Firestore: firestoreClient,
		Messaging: messagingClient,
	}, nil
}

func validateEnvVariables(envVariables []string) error {
	if slices.Contains(envVariables, "") {
		return errMissingFirebaseEnv
	}
	return nil
}

// LoadFirebaseConfig reads either GOOGLE_APPLICATION_CREDENTIALS or the
// inline FIREBASE_* service account variables.
func LoadFirebaseConfig() (*FirebaseConfig, error) {
	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	if projectID == "" {
		return nil, errMissingFirebaseEnv
	}

	if file := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); file != "" {
		return &FirebaseConfig{ProjectID: projectID, CredentialsFile: file}, nil
	}

	credentials := ServiceAccountCredentials{
		Type:                    getEnv("FIREBASE_TYPE", "service_account"),
		ProjectID:               projectID,
		PrivateKeyID:            os.Getenv("FIREBASE_PRIVATE_KEY_ID"),
		PrivateKey:              os.Getenv("FIREBASE_PRIVATE_KEY"),
		ClientEmail:             os.Getenv("FIREBASE_CLIENT_EMAIL"),
		ClientID:                os.Getenv("FIREBASE_CLIENT_ID"),
		AuthURI:                 getEnv("FIREBASE_AUTH_URI", "https://accounts.google.com/o/oauth2/auth"),
		TokenURI:                getEnv("FIREBASE_TOKEN_URI", "https://oauth2.googleapis.com/token"),
		AuthProviderX509CertURL: getEnv("FIREBASE_AUTH_PROVIDER_X509_CERT_URL", "https://www.googleapis.com/oauth2/v1/certs"),
		ClientX509CertURL:       os.Getenv("FIREBASE_CLIENT_X509_CERT_URL"),
		UniverseDomain:          getEnv("FIREBASE_UNIVERSE_DOMAIN", "googleapis.com"),
	}

	requiredVars := []string{
		credentials.PrivateKeyID,
		credentials.PrivateKey,
		credentials.ClientEmail,
		credentials.ClientID,
		credentials.ClientX509CertURL,
	}
	if err := validateEnvVariables(requiredVars); err != nil {
		slog.Error("Environment variable validation failed", slog.Any("error", err))
		return nil, err
	}

	return &FirebaseConfig{
		ProjectID:   projectID,
		Credentials: credentials,
	}, nil
}

func InitFirebase(ctx context.Context) error {
	slog.Info("Initializing Firebase connection from environment variables")

	firebaseConfig, err := LoadFirebaseConfig()
	if err != nil {
		slog.Error("Failed to load Firebase config from environment variables", slog.Any("error", err))
		return err
	}

	FirebaseConnection, err = NewFirebaseClient(ctx, firebaseConfig)
	if err != nil {
		slog.Error("Failed to initialize Firebase client", slog.Any("error", err))
		return err
	}

	slog.Info("Firebase connection initialized successfully", "project_id", firebaseConfig.ProjectID)
	return nil
}

func CloseFirebaseConnection() error {
	if FirebaseConnection != nil && FirebaseConnection.Firestore != nil {
		err := FirebaseConnection.Firestore.Close()
		if err != nil {
			slog.Error("Failed to close Firebase connection", slog.Any("error", err))
			return err
		}
		slog.Info("Firebase connection closed successfully")
		FirebaseConnection = nil
	}
	return nil
}
