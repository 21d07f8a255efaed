package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"reminderdispatch/internal/config"
)

// NotificationService is the Firestore-backed Store.
type NotificationService struct {
	db *firestore.Client
}

var NotificationServices *NotificationService

func NewNotificationService(firestoreDB *firestore.Client) *NotificationService {
	return &NotificationService{
		db: firestoreDB,
	}
}

func InitNotificationService() error {
	if config.FirebaseConnection == nil || config.FirebaseConnection.Firestore == nil {
		return errors.New("firebase connection not initialized. call config.InitFirebase first")
	}

	NotificationServices = NewNotificationService(config.FirebaseConnection.Firestore)
	slog.Info("Notification service initialized successfully")
	return nil
}

func GetNotificationService() *NotificationService {
	if NotificationServices == nil {
		slog.Error("Notification service not initialized. Call InitNotificationService() first.")
		return nil
	}
	return NotificationServices
}

func (s *NotificationService) user(uid string) *firestore.DocumentRef {
	return s.db.Collection(collectionUsers).Doc(uid)
}

// Preferences never fails: a missing document or a read error both yield
// defaults.
func (s *NotificationService) Preferences(ctx context.Context, uid string) Preferences {
	snap, err := s.user(uid).Collection(collectionPrefs).Doc(docNotifications).Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			slog.Warn("failed to read notification preferences, using defaults", "user_id", uid, "error", err)
		}
		return DefaultPreferences()
	}

	prefs := DefaultPreferences()
	if err := snap.DataTo(&prefs); err != nil {
		slog.Warn("failed to parse notification preferences, using defaults", "user_id", uid, "error", err)
		return DefaultPreferences()
	}
	return prefs
}

// Claim creates users/{uid}/recent_notifs/{key}. Create fails with
// AlreadyExists when the marker is present, which makes the check and the
// write a single operation.
func (s *NotificationService) Claim(ctx context.Context, uid, key string) (bool, error) {
	_, err := s.user(uid).Collection(collectionRecent).Doc(key).Create(ctx, DedupRecord{})
	if err == nil {
		return true, nil
	}
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	return false, fmt.Errorf("failed to claim notification key %q: %w", key, err)
}

func (s *NotificationService) AppendFeed(ctx context.Context, uid string, entry FeedEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.user(uid).Collection(collectionFeed).Doc(entry.ID).Set(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to append feed entry: %w", err)
	}
	return nil
}

func (s *NotificationService) DeviceToken(ctx context.Context, uid string) (string, error) {
	snap, err := s.user(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to read user profile: %w", err)
	}

	v, err := snap.DataAt(fieldFCMToken)
	if err != nil {
		return "", nil
	}
	token, _ := v.(string)
	return token, nil
}
