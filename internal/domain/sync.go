package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"example.com/wellness/internal/observability"
)

// SyncService moves a device's offline collections into the remote store
// once its owner signs in. Each collection moves all-or-nothing.
type SyncService struct {
	remote  RemoteStore
	offline *OfflineStore
	serviceOptions
}

// NewSyncService constructs a SyncService.
func NewSyncService(remote RemoteStore, offline *OfflineStore, opts ...Option) *SyncService {
	return &SyncService{remote: remote, offline: offline, serviceOptions: newServiceOptions(opts)}
}

// SyncReport summarises one sync pass.
type SyncReport struct {
	Activities int      `json:"activities"`
	Chats      int      `json:"chats"`
	Notices    []string `json:"notices,omitempty"`
}

func syncPrincipal(p Principal) error {
	if !p.Authenticated() {
		return ErrAuthRequired
	}
	return nil
}

// SyncActivities uploads the device's offline activities in one batch and
// removes the uploaded records only after the batch is stored.
func (s *SyncService) SyncActivities(ctx context.Context, p Principal) (int, error) {
	if err := syncPrincipal(p); err != nil {
		return 0, err
	}
	if strings.TrimSpace(p.DeviceID) == "" {
		return 0, nil
	}
	records, err := s.offline.Activities(ctx, p.DeviceID)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	batch := make([]ActivityRecord, len(records))
	ids := make([]string, len(records))
	for i, r := range records {
		r.UserID = p.UserID
		batch[i] = r
		ids[i] = r.ID
	}
	if _, err := s.remote.InsertActivities(ctx, p.UserID, batch); err != nil {
		observability.RecordSync("activities", "failed", len(batch))
		return 0, StorageError("sync offline activities", err)
	}
	if err := s.offline.RemoveActivities(ctx, p.DeviceID, ids); err != nil {
		return len(batch), err
	}

	observability.RecordSync("activities", "synced", len(batch))
	s.logger.Info("synced offline activities",
		zap.String("user_id", p.UserID),
		zap.String("device_id", p.DeviceID),
		zap.Int("count", len(batch)))
	return len(batch), nil
}

// SyncChats uploads the device's offline chat history in one batch and
// removes the uploaded messages only after the batch is stored.
func (s *SyncService) SyncChats(ctx context.Context, p Principal) (int, error) {
	if err := syncPrincipal(p); err != nil {
		return 0, err
	}
	if strings.TrimSpace(p.DeviceID) == "" {
		return 0, nil
	}
	msgs, err := s.offline.Chats(ctx, p.DeviceID)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	batch := make([]ChatMessage, len(msgs))
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		m.UserID = p.UserID
		batch[i] = m
		ids[i] = m.ID
	}
	if _, err := s.remote.InsertChats(ctx, p.UserID, batch); err != nil {
		observability.RecordSync("chats", "failed", len(batch))
		return 0, StorageError("sync offline chats", err)
	}
	if err := s.offline.RemoveChats(ctx, p.DeviceID, ids); err != nil {
		return len(batch), err
	}

	observability.RecordSync("chats", "synced", len(batch))
	s.logger.Info("synced offline chats",
		zap.String("user_id", p.UserID),
		zap.String("device_id", p.DeviceID),
		zap.Int("count", len(batch)))
	return len(batch), nil
}

// Sync runs both collection syncs. A failure of one does not stop the other;
// failures are reported as notices and joined into the returned error.
func (s *SyncService) Sync(ctx context.Context, p Principal) (SyncReport, error) {
	if err := syncPrincipal(p); err != nil {
		return SyncReport{}, err
	}
	var report SyncReport
	var errs []error

	n, err := s.SyncActivities(ctx, p)
	report.Activities = n
	if err != nil {
		errs = append(errs, err)
		report.Notices = append(report.Notices, fmt.Sprintf("Failed to sync offline activities: %v", err))
	} else if n > 0 {
		report.Notices = append(report.Notices, "Successfully synced your offline activities")
	}

	n, err = s.SyncChats(ctx, p)
	report.Chats = n
	if err != nil {
		errs = append(errs, err)
		report.Notices = append(report.Notices, fmt.Sprintf("Failed to sync offline chats: %v", err))
	} else if n > 0 {
		report.Notices = append(report.Notices, "Successfully synced your offline chat history")
	}

	return report, errors.Join(errs...)
}

// LoginService signs a user in and performs the one post-login sync.
type LoginService struct {
	auth Authenticator
	sync *SyncService
	serviceOptions
}

// NewLoginService constructs a LoginService.
func NewLoginService(auth Authenticator, sync *SyncService, opts ...Option) *LoginService {
	return &LoginService{auth: auth, sync: sync, serviceOptions: newServiceOptions(opts)}
}

// Login authenticates the credentials and then syncs deviceID's offline data
// into the new session's account. Sync failures do not fail the login.
func (s *LoginService) Login(ctx context.Context, deviceID, email, password string) (Session, SyncReport, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, SyncReport{}, validationError("email and password are required")
	}
	if s.auth == nil {
		return Session{}, SyncReport{}, fmt.Errorf("%w: sign-in is not configured", ErrAuthRequired)
	}

	session, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, SyncReport{}, fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}

	report, err := s.sync.Sync(ctx, Principal{UserID: session.UserID, DeviceID: deviceID})
	if err != nil {
		s.logger.Warn("post-login sync incomplete", zap.String("user_id", session.UserID), zap.Error(err))
	}
	return session, report, nil
}
