package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"demonboard/api/internal/auth"
	"demonboard/api/internal/authpw"
	"demonboard/api/internal/config"
	"demonboard/api/internal/email"
	"demonboard/api/internal/export"
	"demonboard/api/internal/list"
	"demonboard/api/internal/rbac"
	"demonboard/api/internal/search"
	"demonboard/api/internal/store"
	"demonboard/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	UpdateUserRole(ctx context.Context, userID, role string) (bool, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	ListLevels(ctx context.Context, list string) ([]store.Level, error)
	GetLevel(ctx context.Context, levelID string) (store.Level, error)
	UpdateLevelMeta(ctx context.Context, levelID, name, creator, verifier, videoURL, description string) (bool, error)
	ListChangelog(ctx context.Context, list string, limit int) ([]store.ListChange, error)

	ListLevelRecords(ctx context.Context, levelID string, approvedOnly bool) ([]store.Record, error)
	ListUserRecords(ctx context.Context, userID string) ([]store.Record, error)
	ListPendingRecords(ctx context.Context, limit int) ([]store.Record, error)
	GetRecord(ctx context.Context, recordID string) (store.Record, error)
	UpsertRecord(ctx context.Context, record store.Record) error
	ReviewRecord(ctx context.Context, recordID, status, reviewedBy, note string) (bool, error)

	ListLayouts(ctx context.Context) ([]store.Layout, error)
	GetLayout(ctx context.Context, layoutID string) (store.Layout, error)
	InsertLayout(ctx context.Context, layout store.Layout) error
	UpdateLayout(ctx context.Context, layoutID, title, description, status string) (bool, error)
	DeleteLayout(ctx context.Context, layoutID string) (bool, error)
	ListParts(ctx context.Context, layoutID string) ([]store.Part, error)
	InsertPart(ctx context.Context, part store.Part) error
	ClaimPart(ctx context.Context, partID, userID string) (bool, error)
	UpdatePartStatus(ctx context.Context, partID, status string) (bool, error)
	DeletePart(ctx context.Context, partID string) (bool, error)
	GetPart(ctx context.Context, partID string) (store.Part, error)
	ListMessages(ctx context.Context, layoutID string, limit int) ([]store.Message, error)
	InsertMessage(ctx context.Context, message store.Message) error

	ListFriends(ctx context.Context, userID string) ([]store.User, error)
	ListFriendRequests(ctx context.Context, userID string) ([]store.FriendRequest, error)
	GetFriendRequest(ctx context.Context, requestID string) (store.FriendRequest, error)
	InsertFriendRequest(ctx context.Context, request store.FriendRequest) error
	AnswerFriendRequest(ctx context.Context, requestID, userID, status string) (bool, error)
	RemoveFriend(ctx context.Context, userID, friendID string) (bool, error)

	Ping(ctx context.Context) error
}

// refreshStore holds refresh tokens; Redis when configured, Postgres otherwise.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type listService interface {
	Insert(ctx context.Context, listKey string, data list.LevelData, placement int) (store.Level, []string, error)
	Move(ctx context.Context, levelID string, newPlacement int) (store.Level, []string, error)
	Remove(ctx context.Context, levelID string) error
	Reconstruct(ctx context.Context, listKey string, at time.Time) ([]store.Level, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexLevel(lv search.LevelRecord)
	IndexLayout(l search.LayoutRecord)
	DeleteLevel(id string)
	DeleteLayout(id string)
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendRecordReviewedEmail(to, userName, levelName, status string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	lists    listService
	authpw   *authpw.Service
	search   searchService
	exporter exporter
	mail     mailer
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions refreshStore, lists *list.Service, authSvc *authpw.Service, searchSvc *search.Service, exportSvc *export.Service, mailSvc *email.Service) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		lists:    lists,
		authpw:   authSvc,
	}
	if svc.sessions == nil {
		svc.sessions = dataStore
	}
	if searchSvc != nil {
		svc.search = searchSvc
	}
	if exportSvc != nil {
		svc.exporter = exportSvc
	}
	if mailSvc != nil {
		svc.mail = mailSvc
	}
	return svc
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateSession issues an access token and a refresh token for a signed-in user.
func (s *Service) CreateSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token and issues a fresh session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// The session store may return a sparse user row; re-read the
	// authoritative one so role changes take effect on refresh.
	if full, err := s.store.GetUserByID(ctx, user.ID); err == nil {
		user = full
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.CreateSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// --- Lists and levels ---

func (s *Service) GetList(ctx context.Context, listKey string) (map[string]any, error) {
	listKey = strings.TrimSpace(listKey)
	if listKey == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "list is required", nil)
	}
	levels, err := s.store.ListLevels(ctx, listKey)
	if err != nil {
		return nil, err
	}
	return map[string]any{"list": listKey, "levels": levelPayloads(levels)}, nil
}

// GetHistory reconstructs the list as it stood at the given instant.
func (s *Service) GetHistory(ctx context.Context, listKey string, at time.Time) (map[string]any, error) {
	listKey = strings.TrimSpace(listKey)
	if listKey == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "list is required", nil)
	}
	levels, err := s.lists.Reconstruct(ctx, listKey, at)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"list":   listKey,
		"asOf":   at.UTC().Format(time.RFC3339),
		"levels": levelPayloads(levels),
	}, nil
}

func (s *Service) GetChangelog(ctx context.Context, listKey string, limit int) (map[string]any, error) {
	listKey = strings.TrimSpace(listKey)
	if listKey == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "list is required", nil)
	}
	changes, err := s.store.ListChangelog(ctx, listKey, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		items = append(items, changePayload(c))
	}
	return map[string]any{"list": listKey, "changes": items}, nil
}

// GetLevelDetail returns a level with its approved records.
func (s *Service) GetLevelDetail(ctx context.Context, levelID string) (map[string]any, error) {
	level, err := s.store.GetLevel(ctx, levelID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListLevelRecords(ctx, levelID, true)
	if err != nil {
		return nil, err
	}
	payload := levelPayload(level)
	payload["records"] = recordPayloads(records)
	return payload, nil
}

func (s *Service) Search(ctx context.Context, q, filterType, filterList string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	resp := s.search.Search(search.Query{
		Text:       q,
		FilterType: search.ResultType(filterType),
		FilterList: filterList,
		Limit:      limit,
		Offset:     offset,
	})
	return map[string]any{"results": resp.Results, "total": resp.Total, "query": resp.Query}, nil
}

// --- Admin list mutation ---

type LevelInput struct {
	List        string `json:"list"`
	Placement   int    `json:"placement"`
	Name        string `json:"name"`
	Creator     string `json:"creator"`
	Verifier    string `json:"verifier"`
	ExternalID  int64  `json:"externalId"`
	VideoURL    string `json:"videoUrl"`
	Description string `json:"description"`
}

func (s *Service) InsertLevel(ctx context.Context, input LevelInput) (map[string]any, error) {
	input.List = strings.TrimSpace(input.List)
	input.Name = strings.TrimSpace(input.Name)
	if input.List == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "list is required", nil)
	}
	if input.Name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	level, truncated, err := s.lists.Insert(ctx, input.List, list.LevelData{
		Name:        input.Name,
		Creator:     input.Creator,
		Verifier:    input.Verifier,
		ExternalID:  input.ExternalID,
		VideoURL:    input.VideoURL,
		Description: input.Description,
	}, input.Placement)
	if err != nil {
		return nil, err
	}
	s.indexLevel(level)
	s.deindexLevels(truncated)
	return levelPayload(level), nil
}

func (s *Service) MoveLevel(ctx context.Context, levelID string, newPlacement int) (map[string]any, error) {
	level, truncated, err := s.lists.Move(ctx, levelID, newPlacement)
	if err != nil {
		return nil, err
	}
	s.indexLevel(level)
	s.deindexLevels(truncated)
	return levelPayload(level), nil
}

// EditLevel updates level metadata. Placement is never touched here;
// reordering goes through MoveLevel so the changelog stays complete.
func (s *Service) EditLevel(ctx context.Context, levelID, name, creator, verifier, videoURL, description string) (map[string]any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	updated, err := s.store.UpdateLevelMeta(ctx, levelID, name, creator, verifier, videoURL, description)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Level not found", nil)
	}
	level, err := s.store.GetLevel(ctx, levelID)
	if err != nil {
		return nil, err
	}
	s.indexLevel(level)
	return levelPayload(level), nil
}

func (s *Service) RemoveLevel(ctx context.Context, levelID string) error {
	if err := s.lists.Remove(ctx, levelID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteLevel(levelID)
	}
	return nil
}

func (s *Service) ExportList(ctx context.Context, listKey string, at *time.Time) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	listKey = strings.TrimSpace(listKey)
	if listKey == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "list is required", nil)
	}
	return s.exporter.Export(ctx, export.Request{List: listKey, At: at})
}

// deindexLevels drops levels deleted by capacity truncation from the search
// index. Indexing is best effort; a committed reorder never fails here.
func (s *Service) deindexLevels(ids []string) {
	if s.search == nil {
		return
	}
	for _, id := range ids {
		s.search.DeleteLevel(id)
	}
}

func (s *Service) indexLevel(level store.Level) {
	if s.search == nil {
		return
	}
	s.search.IndexLevel(search.LevelRecord{
		ID:          level.ID,
		Name:        level.Name,
		Creator:     level.Creator,
		Verifier:    level.Verifier,
		Description: level.Description,
		List:        level.List,
		Placement:   level.Placement,
	})
}

// --- Records ---

func (s *Service) SubmitRecord(ctx context.Context, session Session, levelID string, percent int, videoURL string) (map[string]any, error) {
	if percent < 1 || percent > 100 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "percent must be between 1 and 100", nil)
	}
	if strings.TrimSpace(videoURL) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "videoUrl is required", nil)
	}
	if _, err := s.store.GetLevel(ctx, levelID); err != nil {
		return nil, err
	}
	record := store.Record{
		ID:         util.NewID("rec"),
		LevelID:    levelID,
		UserID:     session.UserID,
		PlayerName: session.UserName,
		Percent:    percent,
		VideoURL:   videoURL,
		Status:     store.RecordPending,
	}
	if err := s.store.UpsertRecord(ctx, record); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "status": store.RecordPending}, nil
}

func (s *Service) MyRecords(ctx context.Context, session Session) (map[string]any, error) {
	records, err := s.store.ListUserRecords(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"records": recordPayloads(records)}, nil
}

func (s *Service) PendingRecords(ctx context.Context, limit int) (map[string]any, error) {
	records, err := s.store.ListPendingRecords(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"records": recordPayloads(records)}, nil
}

// ReviewRecord approves or rejects a pending record and notifies the player.
func (s *Service) ReviewRecord(ctx context.Context, session Session, recordID, status, note string) (map[string]any, error) {
	if status != store.RecordApproved && status != store.RecordRejected {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be APPROVED or REJECTED", nil)
	}
	reviewed, err := s.store.ReviewRecord(ctx, recordID, status, session.UserName, note)
	if err != nil {
		return nil, err
	}
	if !reviewed {
		return nil, domainError(http.StatusConflict, "CONFLICT", "Record is not pending", nil)
	}
	s.notifyRecordReviewed(ctx, recordID, status)
	return map[string]any{"ok": true, "status": status}, nil
}

func (s *Service) notifyRecordReviewed(ctx context.Context, recordID, status string) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return
	}
	user, err := s.store.GetUserByID(ctx, record.UserID)
	if err != nil || user.Email == "" {
		return
	}
	level, err := s.store.GetLevel(ctx, record.LevelID)
	if err != nil {
		return
	}
	go func() {
		if err := s.mail.SendRecordReviewedEmail(user.Email, user.Name, level.Name, status); err != nil {
			log.Printf("email: record review notification to %s: %v", user.Email, err)
		}
	}()
}

// --- Layout workshop ---

func (s *Service) ListLayouts(ctx context.Context) (map[string]any, error) {
	layouts, err := s.store.ListLayouts(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(layouts))
	for _, l := range layouts {
		items = append(items, layoutPayload(l))
	}
	return map[string]any{"layouts": items}, nil
}

func (s *Service) CreateLayout(ctx context.Context, session Session, title, description string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	layout := store.Layout{
		ID:          util.NewID("lay"),
		OwnerID:     session.UserID,
		OwnerName:   session.UserName,
		Title:       title,
		Description: description,
		Status:      "OPEN",
	}
	if err := s.store.InsertLayout(ctx, layout); err != nil {
		return nil, err
	}
	s.indexLayout(layout)
	return layoutPayload(layout), nil
}

// GetLayoutDetail returns a layout with its parts.
func (s *Service) GetLayoutDetail(ctx context.Context, layoutID string) (map[string]any, error) {
	layout, err := s.store.GetLayout(ctx, layoutID)
	if err != nil {
		return nil, err
	}
	parts, err := s.store.ListParts(ctx, layoutID)
	if err != nil {
		return nil, err
	}
	payload := layoutPayload(layout)
	partItems := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		partItems = append(partItems, partPayload(p))
	}
	payload["parts"] = partItems
	return payload, nil
}

func (s *Service) UpdateLayout(ctx context.Context, session Session, layoutID, title, description, status string) (map[string]any, error) {
	layout, err := s.store.GetLayout(ctx, layoutID)
	if err != nil {
		return nil, err
	}
	if !s.canManage(session, layout.OwnerID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if strings.TrimSpace(title) == "" {
		title = layout.Title
	}
	if status == "" {
		status = layout.Status
	}
	if _, err := s.store.UpdateLayout(ctx, layoutID, title, description, status); err != nil {
		return nil, err
	}
	layout, err = s.store.GetLayout(ctx, layoutID)
	if err != nil {
		return nil, err
	}
	s.indexLayout(layout)
	return layoutPayload(layout), nil
}

func (s *Service) DeleteLayout(ctx context.Context, session Session, layoutID string) error {
	layout, err := s.store.GetLayout(ctx, layoutID)
	if err != nil {
		return err
	}
	if !s.canManage(session, layout.OwnerID) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if _, err := s.store.DeleteLayout(ctx, layoutID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteLayout(layoutID)
	}
	return nil
}

func (s *Service) AddPart(ctx context.Context, session Session, layoutID string, startPercent, endPercent int) (map[string]any, error) {
	if startPercent < 0 || endPercent > 100 || startPercent >= endPercent {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "part range must satisfy 0 <= start < end <= 100", nil)
	}
	layout, err := s.store.GetLayout(ctx, layoutID)
	if err != nil {
		return nil, err
	}
	if !s.canManage(session, layout.OwnerID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	part := store.Part{
		ID:           util.NewID("prt"),
		LayoutID:     layoutID,
		StartPercent: startPercent,
		EndPercent:   endPercent,
		Status:       store.PartOpen,
	}
	if err := s.store.InsertPart(ctx, part); err != nil {
		return nil, err
	}
	return partPayload(part), nil
}

func (s *Service) ClaimPart(ctx context.Context, session Session, partID string) (map[string]any, error) {
	claimed, err := s.store.ClaimPart(ctx, partID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, domainError(http.StatusConflict, "CONFLICT", "Part is not open", nil)
	}
	part, err := s.store.GetPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	return partPayload(part), nil
}

func (s *Service) SetPartStatus(ctx context.Context, session Session, partID, status string) (map[string]any, error) {
	if status != store.PartOpen && status != store.PartClaimed && status != store.PartDone {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid part status", nil)
	}
	part, err := s.store.GetPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	layout, err := s.store.GetLayout(ctx, part.LayoutID)
	if err != nil {
		return nil, err
	}
	if part.ClaimedBy != session.UserID && !s.canManage(session, layout.OwnerID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if _, err := s.store.UpdatePartStatus(ctx, partID, status); err != nil {
		return nil, err
	}
	part, err = s.store.GetPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	return partPayload(part), nil
}

func (s *Service) DeletePart(ctx context.Context, session Session, partID string) error {
	part, err := s.store.GetPart(ctx, partID)
	if err != nil {
		return err
	}
	layout, err := s.store.GetLayout(ctx, part.LayoutID)
	if err != nil {
		return err
	}
	if !s.canManage(session, layout.OwnerID) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	_, err = s.store.DeletePart(ctx, partID)
	return err
}

func (s *Service) LayoutMessages(ctx context.Context, layoutID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetLayout(ctx, layoutID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, layoutID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		items = append(items, messagePayload(m))
	}
	return map[string]any{"messages": items}, nil
}

func (s *Service) PostMessage(ctx context.Context, session Session, layoutID, body string) (map[string]any, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message body is required", nil)
	}
	if _, err := s.store.GetLayout(ctx, layoutID); err != nil {
		return nil, err
	}
	message := store.Message{
		ID:         util.NewID("msg"),
		LayoutID:   layoutID,
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		Body:       body,
	}
	if err := s.store.InsertMessage(ctx, message); err != nil {
		return nil, err
	}
	return messagePayload(message), nil
}

func (s *Service) indexLayout(layout store.Layout) {
	if s.search == nil {
		return
	}
	s.search.IndexLayout(search.LayoutRecord{
		ID:          layout.ID,
		Name:        layout.Title,
		Author:      layout.OwnerName,
		Description: layout.Description,
		Status:      layout.Status,
	})
}

// canManage reports whether the session owns the resource or moderates.
func (s *Service) canManage(session Session, ownerID string) bool {
	if session.UserID == ownerID {
		return true
	}
	return s.Can(session.Role, rbac.ActionModerate)
}

// --- Friends ---

func (s *Service) Friends(ctx context.Context, session Session) (map[string]any, error) {
	friends, err := s.store.ListFriends(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(friends))
	for _, f := range friends {
		items = append(items, userPayload(f))
	}
	return map[string]any{"friends": items}, nil
}

func (s *Service) FriendRequests(ctx context.Context, session Session) (map[string]any, error) {
	requests, err := s.store.ListFriendRequests(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(requests))
	for _, r := range requests {
		items = append(items, friendRequestPayload(r))
	}
	return map[string]any{"requests": items}, nil
}

func (s *Service) SendFriendRequest(ctx context.Context, session Session, toUserID string) (map[string]any, error) {
	if toUserID == session.UserID {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot friend yourself", nil)
	}
	to, err := s.store.GetUserByID(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	request := store.FriendRequest{
		ID:       util.NewID("frq"),
		FromID:   session.UserID,
		FromName: session.UserName,
		ToID:     to.ID,
		ToName:   to.Name,
		Status:   store.FriendPending,
	}
	if err := s.store.InsertFriendRequest(ctx, request); err != nil {
		return nil, err
	}
	return friendRequestPayload(request), nil
}

func (s *Service) AnswerFriendRequest(ctx context.Context, session Session, requestID string, accept bool) (map[string]any, error) {
	status := store.FriendDeclined
	if accept {
		status = store.FriendAccepted
	}
	answered, err := s.store.AnswerFriendRequest(ctx, requestID, session.UserID, status)
	if err != nil {
		return nil, err
	}
	if !answered {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "No pending request", nil)
	}
	return map[string]any{"ok": true, "status": status}, nil
}

func (s *Service) RemoveFriend(ctx context.Context, session Session, friendID string) error {
	removed, err := s.store.RemoveFriend(ctx, session.UserID, friendID)
	if err != nil {
		return err
	}
	if !removed {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not friends", nil)
	}
	return nil
}

// --- Users ---

func (s *Service) SetUserRole(ctx context.Context, userID, role string) (map[string]any, error) {
	normalized := string(rbac.Normalize(role))
	if normalized != role {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be member, moderator, or admin", nil)
	}
	updated, err := s.store.UpdateUserRole(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	}
	return map[string]any{"ok": true, "userId": userID, "role": normalized}, nil
}

// --- Payload helpers ---

func levelPayloads(levels []store.Level) []map[string]any {
	items := make([]map[string]any, 0, len(levels))
	for _, l := range levels {
		items = append(items, levelPayload(l))
	}
	return items
}

func levelPayload(l store.Level) map[string]any {
	return map[string]any{
		"id":          l.ID,
		"list":        l.List,
		"placement":   l.Placement,
		"name":        l.Name,
		"creator":     l.Creator,
		"verifier":    l.Verifier,
		"externalId":  l.ExternalID,
		"videoUrl":    l.VideoURL,
		"description": l.Description,
		"historic":    l.Historic,
	}
}

func changePayload(c store.ListChange) map[string]any {
	payload := map[string]any{
		"id":          c.ID,
		"type":        c.Type,
		"list":        c.List,
		"levelId":     c.LevelID,
		"levelName":   c.LevelName,
		"description": c.Description,
		"createdAt":   c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.OldPlacement != nil {
		payload["oldPlacement"] = *c.OldPlacement
	}
	if c.NewPlacement != nil {
		payload["newPlacement"] = *c.NewPlacement
	}
	return payload
}

func recordPayloads(records []store.Record) []map[string]any {
	items := make([]map[string]any, 0, len(records))
	for _, r := range records {
		items = append(items, recordPayload(r))
	}
	return items
}

func recordPayload(r store.Record) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"levelId":    r.LevelID,
		"userId":     r.UserID,
		"playerName": r.PlayerName,
		"percent":    r.Percent,
		"videoUrl":   r.VideoURL,
		"status":     r.Status,
		"reviewedBy": r.ReviewedBy,
		"reviewNote": r.ReviewNote,
	}
}

func layoutPayload(l store.Layout) map[string]any {
	return map[string]any{
		"id":          l.ID,
		"ownerId":     l.OwnerID,
		"ownerName":   l.OwnerName,
		"title":       l.Title,
		"description": l.Description,
		"status":      l.Status,
	}
}

func partPayload(p store.Part) map[string]any {
	return map[string]any{
		"id":           p.ID,
		"layoutId":     p.LayoutID,
		"startPercent": p.StartPercent,
		"endPercent":   p.EndPercent,
		"status":       p.Status,
		"claimedBy":    p.ClaimedBy,
		"claimedName":  p.ClaimedName,
	}
}

func messagePayload(m store.Message) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"layoutId":   m.LayoutID,
		"authorId":   m.AuthorID,
		"authorName": m.AuthorName,
		"body":       m.Body,
		"createdAt":  m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func userPayload(u store.User) map[string]any {
	return map[string]any{
		"id":   u.ID,
		"name": u.Name,
		"role": u.Role,
	}
}

func friendRequestPayload(r store.FriendRequest) map[string]any {
	return map[string]any{
		"id":       r.ID,
		"fromId":   r.FromID,
		"fromName": r.FromName,
		"toId":     r.ToID,
		"toName":   r.ToName,
		"status":   r.Status,
	}
}
