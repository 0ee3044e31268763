package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"demonboard/api/internal/auth"
	"demonboard/api/internal/config"
	"demonboard/api/internal/list"
	"demonboard/api/internal/search"
	"demonboard/api/internal/store"
)

type fakeStore struct {
	getUserByIDFn          func(context.Context, string) (store.User, error)
	updateUserRoleFn       func(context.Context, string, string) (bool, error)
	isAccessTokenRevokedFn func(context.Context, string) (bool, error)

	listLevelsFn      func(context.Context, string) ([]store.Level, error)
	getLevelFn        func(context.Context, string) (store.Level, error)
	updateLevelMetaFn func(context.Context, string, string, string, string, string, string) (bool, error)
	listChangelogFn   func(context.Context, string, int) ([]store.ListChange, error)

	listLevelRecordsFn   func(context.Context, string, bool) ([]store.Record, error)
	listUserRecordsFn    func(context.Context, string) ([]store.Record, error)
	listPendingRecordsFn func(context.Context, int) ([]store.Record, error)
	getRecordFn          func(context.Context, string) (store.Record, error)
	upsertRecordFn       func(context.Context, store.Record) error
	reviewRecordFn       func(context.Context, string, string, string, string) (bool, error)

	getLayoutFn    func(context.Context, string) (store.Layout, error)
	insertLayoutFn func(context.Context, store.Layout) error
	getPartFn      func(context.Context, string) (store.Part, error)
	claimPartFn    func(context.Context, string, string) (bool, error)

	insertFriendRequestFn func(context.Context, store.FriendRequest) error
	answerFriendRequestFn func(context.Context, string, string, string) (bool, error)

	saveRefreshSessionFn   func(context.Context, string, string, time.Time) error
	lookupRefreshSessionFn func(context.Context, string) (store.User, error)
	revokeRefreshSessionFn func(context.Context, string) error

	pingFn func(context.Context) error
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, Name: "Test User", Role: "member"}, nil
}
func (f *fakeStore) UpdateUserRole(ctx context.Context, userID, role string) (bool, error) {
	if f.updateUserRoleFn != nil {
		return f.updateUserRoleFn(ctx, userID, role)
	}
	return true, nil
}
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) ListLevels(ctx context.Context, listKey string) ([]store.Level, error) {
	if f.listLevelsFn != nil {
		return f.listLevelsFn(ctx, listKey)
	}
	return nil, nil
}
func (f *fakeStore) GetLevel(ctx context.Context, levelID string) (store.Level, error) {
	if f.getLevelFn != nil {
		return f.getLevelFn(ctx, levelID)
	}
	return store.Level{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateLevelMeta(ctx context.Context, levelID, name, creator, verifier, videoURL, description string) (bool, error) {
	if f.updateLevelMetaFn != nil {
		return f.updateLevelMetaFn(ctx, levelID, name, creator, verifier, videoURL, description)
	}
	return true, nil
}
func (f *fakeStore) ListChangelog(ctx context.Context, listKey string, limit int) ([]store.ListChange, error) {
	if f.listChangelogFn != nil {
		return f.listChangelogFn(ctx, listKey, limit)
	}
	return nil, nil
}

func (f *fakeStore) ListLevelRecords(ctx context.Context, levelID string, approvedOnly bool) ([]store.Record, error) {
	if f.listLevelRecordsFn != nil {
		return f.listLevelRecordsFn(ctx, levelID, approvedOnly)
	}
	return nil, nil
}
func (f *fakeStore) ListUserRecords(ctx context.Context, userID string) ([]store.Record, error) {
	if f.listUserRecordsFn != nil {
		return f.listUserRecordsFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) ListPendingRecords(ctx context.Context, limit int) ([]store.Record, error) {
	if f.listPendingRecordsFn != nil {
		return f.listPendingRecordsFn(ctx, limit)
	}
	return nil, nil
}
func (f *fakeStore) GetRecord(ctx context.Context, recordID string) (store.Record, error) {
	if f.getRecordFn != nil {
		return f.getRecordFn(ctx, recordID)
	}
	return store.Record{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertRecord(ctx context.Context, record store.Record) error {
	if f.upsertRecordFn != nil {
		return f.upsertRecordFn(ctx, record)
	}
	return nil
}
func (f *fakeStore) ReviewRecord(ctx context.Context, recordID, status, reviewedBy, note string) (bool, error) {
	if f.reviewRecordFn != nil {
		return f.reviewRecordFn(ctx, recordID, status, reviewedBy, note)
	}
	return true, nil
}

func (f *fakeStore) ListLayouts(context.Context) ([]store.Layout, error) { return nil, nil }
func (f *fakeStore) GetLayout(ctx context.Context, layoutID string) (store.Layout, error) {
	if f.getLayoutFn != nil {
		return f.getLayoutFn(ctx, layoutID)
	}
	return store.Layout{}, sql.ErrNoRows
}
func (f *fakeStore) InsertLayout(ctx context.Context, layout store.Layout) error {
	if f.insertLayoutFn != nil {
		return f.insertLayoutFn(ctx, layout)
	}
	return nil
}
func (f *fakeStore) UpdateLayout(context.Context, string, string, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeleteLayout(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) ListParts(context.Context, string) ([]store.Part, error) {
	return nil, nil
}
func (f *fakeStore) InsertPart(context.Context, store.Part) error { return nil }
func (f *fakeStore) ClaimPart(ctx context.Context, partID, userID string) (bool, error) {
	if f.claimPartFn != nil {
		return f.claimPartFn(ctx, partID, userID)
	}
	return true, nil
}
func (f *fakeStore) UpdatePartStatus(context.Context, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeletePart(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) GetPart(ctx context.Context, partID string) (store.Part, error) {
	if f.getPartFn != nil {
		return f.getPartFn(ctx, partID)
	}
	return store.Part{}, sql.ErrNoRows
}
func (f *fakeStore) ListMessages(context.Context, string, int) ([]store.Message, error) {
	return nil, nil
}
func (f *fakeStore) InsertMessage(context.Context, store.Message) error { return nil }

func (f *fakeStore) ListFriends(context.Context, string) ([]store.User, error) { return nil, nil }
func (f *fakeStore) ListFriendRequests(context.Context, string) ([]store.FriendRequest, error) {
	return nil, nil
}
func (f *fakeStore) GetFriendRequest(context.Context, string) (store.FriendRequest, error) {
	return store.FriendRequest{}, sql.ErrNoRows
}
func (f *fakeStore) InsertFriendRequest(ctx context.Context, request store.FriendRequest) error {
	if f.insertFriendRequestFn != nil {
		return f.insertFriendRequestFn(ctx, request)
	}
	return nil
}
func (f *fakeStore) AnswerFriendRequest(ctx context.Context, requestID, userID, status string) (bool, error) {
	if f.answerFriendRequestFn != nil {
		return f.answerFriendRequestFn(ctx, requestID, userID, status)
	}
	return true, nil
}
func (f *fakeStore) RemoveFriend(context.Context, string, string) (bool, error) {
	return true, nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, tokenHash, userID, expiresAt)
	}
	return nil
}
func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeLists struct {
	insertFn      func(context.Context, string, list.LevelData, int) (store.Level, []string, error)
	moveFn        func(context.Context, string, int) (store.Level, []string, error)
	removeFn      func(context.Context, string) error
	reconstructFn func(context.Context, string, time.Time) ([]store.Level, error)
}

func (f *fakeLists) Insert(ctx context.Context, listKey string, data list.LevelData, placement int) (store.Level, []string, error) {
	if f.insertFn != nil {
		return f.insertFn(ctx, listKey, data, placement)
	}
	return store.Level{ID: "lvl_1", List: listKey, Placement: placement, Name: data.Name}, nil, nil
}
func (f *fakeLists) Move(ctx context.Context, levelID string, newPlacement int) (store.Level, []string, error) {
	if f.moveFn != nil {
		return f.moveFn(ctx, levelID, newPlacement)
	}
	return store.Level{ID: levelID, Placement: newPlacement}, nil, nil
}
func (f *fakeLists) Remove(ctx context.Context, levelID string) error {
	if f.removeFn != nil {
		return f.removeFn(ctx, levelID)
	}
	return nil
}
func (f *fakeLists) Reconstruct(ctx context.Context, listKey string, at time.Time) ([]store.Level, error) {
	if f.reconstructFn != nil {
		return f.reconstructFn(ctx, listKey, at)
	}
	return nil, nil
}

type fakeSearch struct {
	indexedLevels []string
	deletedLevels []string
}

func (f *fakeSearch) Search(search.Query) search.Response { return search.Response{} }
func (f *fakeSearch) IndexLevel(lv search.LevelRecord) {
	f.indexedLevels = append(f.indexedLevels, lv.ID)
}
func (f *fakeSearch) IndexLayout(search.LayoutRecord) {}
func (f *fakeSearch) DeleteLevel(id string)           { f.deletedLevels = append(f.deletedLevels, id) }
func (f *fakeSearch) DeleteLayout(string)             {}

func newTestService(fs *fakeStore, fl *fakeLists) *Service {
	if fl == nil {
		fl = &fakeLists{}
	}
	return &Service{
		cfg: config.Config{
			TokenSecret: "test-secret",
			AccessTTL:   15 * time.Minute,
			RefreshTTL:  30 * 24 * time.Hour,
		},
		store:    fs,
		sessions: fs,
		lists:    fl,
	}
}

func TestCreateSessionStoresHashedRefreshToken(t *testing.T) {
	var savedHash string
	fs := &fakeStore{
		saveRefreshSessionFn: func(_ context.Context, tokenHash, userID string, _ time.Time) error {
			savedHash = tokenHash
			if userID != "usr_1" {
				t.Fatalf("expected user usr_1, got %q", userID)
			}
			return nil
		},
	}
	svc := newTestService(fs, nil)

	session, err := svc.CreateSession(context.Background(), store.User{ID: "usr_1", Name: "Avery", Role: "member"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.RefreshToken == "" {
		t.Fatal("expected a refresh token")
	}
	if savedHash == "" || savedHash == session.RefreshToken {
		t.Fatalf("expected refresh token to be stored hashed, got %q", savedHash)
	}
	if savedHash != auth.HashToken(session.RefreshToken) {
		t.Fatal("stored hash does not match the issued refresh token")
	}
	claims, err := auth.ParseToken([]byte("test-secret"), session.Token)
	if err != nil {
		t.Fatalf("issued access token does not parse: %v", err)
	}
	if claims.Sub != "usr_1" || claims.Role != "member" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestRefreshRotatesTokenAndRereadsRole(t *testing.T) {
	revoked := ""
	fs := &fakeStore{
		lookupRefreshSessionFn: func(_ context.Context, tokenHash string) (store.User, error) {
			if tokenHash != auth.HashToken("old-refresh") {
				return store.User{}, sql.ErrNoRows
			}
			return store.User{ID: "usr_1", Name: "Avery", Role: "member"}, nil
		},
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			// Promoted since the refresh token was minted.
			return store.User{ID: userID, Name: "Avery", Role: "moderator"}, nil
		},
		revokeRefreshSessionFn: func(_ context.Context, tokenHash string) error {
			revoked = tokenHash
			return nil
		},
	}
	svc := newTestService(fs, nil)

	session, err := svc.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if revoked != auth.HashToken("old-refresh") {
		t.Fatal("expected the old refresh token to be revoked")
	}
	if session.Role != "moderator" {
		t.Fatalf("expected refreshed session to carry the new role, got %q", session.Role)
	}
	if session.RefreshToken == "old-refresh" {
		t.Fatal("expected a rotated refresh token")
	}
}

func TestSessionFromTokenRejectsRevokedJTI(t *testing.T) {
	fs := &fakeStore{
		isAccessTokenRevokedFn: func(context.Context, string) (bool, error) { return true, nil },
	}
	svc := newTestService(fs, nil)

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub: "usr_1", Name: "Avery", Role: "member", JTI: "jti-1",
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := svc.SessionFromToken(context.Background(), token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for revoked token, got %v", err)
	}
}

func TestSubmitRecordValidation(t *testing.T) {
	fs := &fakeStore{
		getLevelFn: func(_ context.Context, levelID string) (store.Level, error) {
			return store.Level{ID: levelID, Name: "Bloodbath"}, nil
		},
	}
	svc := newTestService(fs, nil)
	session := Session{UserID: "usr_1", UserName: "Avery", Role: "member"}

	tests := []struct {
		name     string
		percent  int
		videoURL string
	}{
		{name: "zero percent", percent: 0, videoURL: "https://v.example/1"},
		{name: "over hundred", percent: 101, videoURL: "https://v.example/1"},
		{name: "missing video", percent: 50, videoURL: "  "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitRecord(context.Background(), session, "lvl_1", tc.percent, tc.videoURL)
			var domainErr *DomainError
			if !errors.As(err, &domainErr) || domainErr.Status != 422 {
				t.Fatalf("expected a 422 domain error, got %v", err)
			}
		})
	}
}

func TestSubmitRecordStartsPending(t *testing.T) {
	var saved store.Record
	fs := &fakeStore{
		getLevelFn: func(_ context.Context, levelID string) (store.Level, error) {
			return store.Level{ID: levelID, Name: "Bloodbath"}, nil
		},
		upsertRecordFn: func(_ context.Context, record store.Record) error {
			saved = record
			return nil
		},
	}
	svc := newTestService(fs, nil)

	_, err := svc.SubmitRecord(context.Background(), Session{UserID: "usr_1", UserName: "Avery"}, "lvl_1", 87, "https://v.example/1")
	if err != nil {
		t.Fatalf("SubmitRecord() error = %v", err)
	}
	if saved.Status != store.RecordPending {
		t.Fatalf("expected new record to be PENDING, got %q", saved.Status)
	}
	if saved.UserID != "usr_1" || saved.LevelID != "lvl_1" || saved.Percent != 87 {
		t.Fatalf("unexpected record %+v", saved)
	}
}

func TestReviewRecordRejectsNonPending(t *testing.T) {
	fs := &fakeStore{
		reviewRecordFn: func(context.Context, string, string, string, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs, nil)

	_, err := svc.ReviewRecord(context.Background(), Session{UserName: "Mod"}, "rec_1", store.RecordApproved, "")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 409 {
		t.Fatalf("expected 409 for an already-reviewed record, got %v", err)
	}
}

func TestReviewRecordRequiresTerminalStatus(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)
	_, err := svc.ReviewRecord(context.Background(), Session{}, "rec_1", "PENDING", "")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 for status PENDING, got %v", err)
	}
}

func TestSetUserRoleRejectsUnknownRole(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)
	_, err := svc.SetUserRole(context.Background(), "usr_1", "overlord")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 for unknown role, got %v", err)
	}
}

func TestSendFriendRequestToSelfRejected(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)
	_, err := svc.SendFriendRequest(context.Background(), Session{UserID: "usr_1"}, "usr_1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 when friending yourself, got %v", err)
	}
}

func TestClaimPartConflictsWhenNotOpen(t *testing.T) {
	fs := &fakeStore{
		claimPartFn: func(context.Context, string, string) (bool, error) { return false, nil },
	}
	svc := newTestService(fs, nil)

	_, err := svc.ClaimPart(context.Background(), Session{UserID: "usr_1"}, "prt_1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 409 {
		t.Fatalf("expected 409 for an already-claimed part, got %v", err)
	}
}

func TestReorderDeindexesTruncatedLevels(t *testing.T) {
	fl := &fakeLists{
		insertFn: func(_ context.Context, listKey string, data list.LevelData, placement int) (store.Level, []string, error) {
			return store.Level{ID: "lvl_new", List: listKey, Placement: placement, Name: data.Name}, []string{"lvl_overflow"}, nil
		},
		moveFn: func(_ context.Context, levelID string, newPlacement int) (store.Level, []string, error) {
			return store.Level{ID: levelID, Placement: newPlacement}, []string{"lvl_pushed_out"}, nil
		},
	}
	fsearch := &fakeSearch{}
	svc := newTestService(&fakeStore{}, fl)
	svc.search = fsearch

	if _, err := svc.InsertLevel(context.Background(), LevelInput{List: "main-list", Name: "Bloodbath", Placement: 1}); err != nil {
		t.Fatalf("insert level: %v", err)
	}
	if len(fsearch.deletedLevels) != 1 || fsearch.deletedLevels[0] != "lvl_overflow" {
		t.Fatalf("expected the truncated level to be deindexed, got %v", fsearch.deletedLevels)
	}

	if _, err := svc.MoveLevel(context.Background(), "lvl_new", 2); err != nil {
		t.Fatalf("move level: %v", err)
	}
	if len(fsearch.deletedLevels) != 2 || fsearch.deletedLevels[1] != "lvl_pushed_out" {
		t.Fatalf("expected the pushed-out level to be deindexed, got %v", fsearch.deletedLevels)
	}
}
