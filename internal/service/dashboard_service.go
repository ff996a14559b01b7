package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/activity"
	"observe/dashboard/internal/fetch"
	"observe/dashboard/internal/model"
	"observe/dashboard/internal/repository"
	"observe/dashboard/internal/session"
	"observe/dashboard/internal/state"
	jwtpkg "observe/dashboard/pkg/jwt"
)

// Page is one page of a list endpoint.
type Page[T any] struct {
	Results []T            `json:"results" yaml:"results"`
	Meta    model.ListMeta `json:"meta" yaml:"meta"`
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Profile   model.Profile `json:"profile"`
}

type DashboardService interface {
	Login(ctx context.Context, accessToken string) (*LoginResult, error)
	Logout(ctx context.Context, s *session.Session) error
	Profile(s *session.Session) (model.Profile, error)

	ListTraces(ctx context.Context, s *session.Session, q action.TraceQuery) (*Page[model.Trace], error)
	GetTrace(ctx context.Context, s *session.Session, id string) (*model.Trace, error)
	UpdateTraceDescription(ctx context.Context, s *session.Session, id, description string) (*model.Trace, error)
	DeleteTrace(ctx context.Context, s *session.Session, id string) error
	ExportTraceGPX(ctx context.Context, s *session.Session, id string, w io.Writer) error
	JOSMLink(s *session.Session, id string) string

	ListPhotos(ctx context.Context, s *session.Session, q action.PhotoQuery) (*Page[model.Photo], error)
	GetPhoto(ctx context.Context, s *session.Session, id string) (*model.Photo, error)
	UpdatePhotoDescription(ctx context.Context, s *session.Session, id, description string) (*model.Photo, error)
	DeletePhoto(ctx context.Context, s *session.Session, id string) error
	DownloadPhoto(ctx context.Context, s *session.Session, id string, w io.Writer) (string, error)

	ListUsers(ctx context.Context, s *session.Session, q action.UserQuery) (*Page[model.User], error)
	SetUserRole(ctx context.Context, s *session.Session, osmID string, isAdmin bool) error

	ListAudit(ctx context.Context, s *session.Session, filter repository.AuditFilter) ([]model.AuditEntry, int64, error)
}

type dashboardService struct {
	api        *action.API
	sessions   *session.Manager
	auditRepo  repository.AuditRepository
	jwtManager *jwtpkg.Manager
	loading    *activity.Indicator
	logger     *zap.Logger
}

func NewDashboardService(
	api *action.API,
	sessions *session.Manager,
	auditRepo repository.AuditRepository,
	jwtManager *jwtpkg.Manager,
	loading *activity.Indicator,
	logger *zap.Logger,
) DashboardService {
	if loading == nil {
		loading = activity.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dashboardService{
		api:        api,
		sessions:   sessions,
		auditRepo:  auditRepo,
		jwtManager: jwtManager,
		loading:    loading,
		logger:     logger,
	}
}

/*
 * Auth
 */

func (s *dashboardService) Login(ctx context.Context, accessToken string) (*LoginResult, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, action.ErrUnauthenticated
	}
	sess, err := s.sessions.Open(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profile(sess)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.jwtManager.Generate(sess.ID, sess.Snapshot().OsmID)
	if err != nil {
		_ = s.sessions.Close(ctx, sess.ID)
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	profile.AccessToken = ""

	s.audit(ctx, sess, model.AuditLogin, "session", sess.ID.String(), nil)
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, Profile: profile}, nil
}

func (s *dashboardService) Logout(ctx context.Context, sess *session.Session) error {
	s.audit(ctx, sess, model.AuditLogout, "session", sess.ID.String(), nil)
	return s.sessions.Close(ctx, sess.ID)
}

func (s *dashboardService) Profile(sess *session.Session) (model.Profile, error) {
	if !sess.Snapshot().Authenticated {
		return model.Profile{}, action.ErrUnauthenticated
	}
	data := gjson.ParseBytes(sess.Store.GetState().AuthenticatedUser.Data)
	return model.Profile{
		OsmID:          data.Get("osmId").Int(),
		OsmDisplayName: data.Get("osmDisplayName").String(),
		IsAdmin:        data.Get("isAdmin").Bool(),
		AccessToken:    data.Get("accessToken").String(),
	}, nil
}

/*
 * Traces
 */

func (s *dashboardService) ListTraces(ctx context.Context, sess *session.Session, q action.TraceQuery) (*Page[model.Trace], error) {
	var page Page[model.Trace]
	err := s.loading.Track("", func() error {
		return decodePage(sess.Store.Run(ctx, s.api.FetchTraces(q)), &page)
	})
	if err != nil {
		return nil, observeErr(err)
	}
	return &page, nil
}

func (s *dashboardService) GetTrace(ctx context.Context, sess *session.Session, id string) (*model.Trace, error) {
	return s.getTrace(ctx, sess, id, false)
}

func (s *dashboardService) getTrace(ctx context.Context, sess *session.Session, id string, cached bool) (*model.Trace, error) {
	var trace model.Trace
	err := s.loading.Track("", func() error {
		return decodeOne(sess.Store.Run(ctx, s.api.FetchTrace(id, cached)), &trace)
	})
	if err != nil {
		return nil, observeErr(err)
	}
	return &trace, nil
}

func (s *dashboardService) UpdateTraceDescription(ctx context.Context, sess *session.Session, id, description string) (*model.Trace, error) {
	trace, err := s.getTrace(ctx, sess, id, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(sess, trace.Properties.OwnerID); err != nil {
		return nil, err
	}
	if trace.Properties.Description == description {
		return trace, nil
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrInvalidDescription
	}

	fields := map[string]any{"description": description}
	err = s.loading.Track("", func() error {
		return s.api.UpdateTrace(id, fields)(ctx, sess.Store)
	})
	if err != nil {
		return nil, observeErr(err)
	}
	s.audit(ctx, sess, model.AuditUpdate, "trace", id, model.AuditDetail{"description": description})

	var updated model.Trace
	if err := state.Wrap(state.Get(sess.Store.GetState(), state.SelectTrace(id))).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *dashboardService) DeleteTrace(ctx context.Context, sess *session.Session, id string) error {
	trace, err := s.getTrace(ctx, sess, id, true)
	if err != nil {
		return err
	}
	if err := s.checkOwner(sess, trace.Properties.OwnerID); err != nil {
		return err
	}
	err = s.loading.Track("", func() error {
		return s.api.DeleteTrace(id)(ctx, sess.Store)
	})
	if err != nil {
		return observeErr(err)
	}
	s.audit(ctx, sess, model.AuditDelete, "trace", id, nil)
	return nil
}

func (s *dashboardService) ExportTraceGPX(ctx context.Context, sess *session.Session, id string, w io.Writer) error {
	return observeErr(s.api.DownloadGPX(ctx, sess.Store, id, w))
}

func (s *dashboardService) JOSMLink(_ *session.Session, id string) string {
	return s.api.JOSMImportURL(id)
}

/*
 * Photos
 */

func (s *dashboardService) ListPhotos(ctx context.Context, sess *session.Session, q action.PhotoQuery) (*Page[model.Photo], error) {
	var page Page[model.Photo]
	err := s.loading.Track("", func() error {
		return decodePage(sess.Store.Run(ctx, s.api.FetchPhotos(q)), &page)
	})
	if err != nil {
		return nil, observeErr(err)
	}
	return &page, nil
}

func (s *dashboardService) GetPhoto(ctx context.Context, sess *session.Session, id string) (*model.Photo, error) {
	return s.getPhoto(ctx, sess, id, false)
}

func (s *dashboardService) getPhoto(ctx context.Context, sess *session.Session, id string, cached bool) (*model.Photo, error) {
	var photo model.Photo
	err := s.loading.Track("", func() error {
		return decodeOne(sess.Store.Run(ctx, s.api.FetchPhoto(id, cached)), &photo)
	})
	if err != nil {
		return nil, observeErr(err)
	}
	return &photo, nil
}

func (s *dashboardService) UpdatePhotoDescription(ctx context.Context, sess *session.Session, id, description string) (*model.Photo, error) {
	photo, err := s.getPhoto(ctx, sess, id, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(sess, photo.OwnerID); err != nil {
		return nil, err
	}
	if photo.Description == description {
		return photo, nil
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrInvalidDescription
	}

	fields := map[string]any{"description": description}
	err = s.loading.Track("", func() error {
		return s.api.UpdatePhoto(id, fields)(ctx, sess.Store)
	})
	if err != nil {
		return nil, observeErr(err)
	}
	s.audit(ctx, sess, model.AuditUpdate, "photo", id, model.AuditDetail{"description": description})

	var updated model.Photo
	if err := state.Wrap(state.Get(sess.Store.GetState(), state.SelectPhoto(id))).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *dashboardService) DeletePhoto(ctx context.Context, sess *session.Session, id string) error {
	photo, err := s.getPhoto(ctx, sess, id, true)
	if err != nil {
		return err
	}
	if err := s.checkOwner(sess, photo.OwnerID); err != nil {
		return err
	}
	err = s.loading.Track("", func() error {
		return s.api.DeletePhoto(id)(ctx, sess.Store)
	})
	if err != nil {
		return observeErr(err)
	}
	s.audit(ctx, sess, model.AuditDelete, "photo", id, nil)
	return nil
}

func (s *dashboardService) DownloadPhoto(ctx context.Context, sess *session.Session, id string, w io.Writer) (string, error) {
	name, err := s.api.DownloadPhoto(ctx, sess.Store, id, w)
	return name, observeErr(err)
}

/*
 * Users
 */

func (s *dashboardService) ListUsers(ctx context.Context, sess *session.Session, q action.UserQuery) (*Page[model.User], error) {
	var page Page[model.User]
	err := s.loading.Track("", func() error {
		return decodePage(sess.Store.Run(ctx, s.api.FetchUsers(q)), &page)
	})
	if err != nil {
		return nil, observeErr(err)
	}
	return &page, nil
}

func (s *dashboardService) SetUserRole(ctx context.Context, sess *session.Session, osmID string, isAdmin bool) error {
	if !sess.Snapshot().IsAdmin {
		return ErrAdminRequired
	}
	err := s.loading.Track("", func() error {
		return s.api.SetUserRole(osmID, isAdmin)(ctx, sess.Store)
	})
	if err != nil {
		return observeErr(err)
	}
	s.audit(ctx, sess, model.AuditRoleChange, "user", osmID, model.AuditDetail{"isAdmin": isAdmin})
	return nil
}

func (s *dashboardService) ListAudit(ctx context.Context, sess *session.Session, filter repository.AuditFilter) ([]model.AuditEntry, int64, error) {
	if !sess.Snapshot().IsAdmin {
		return nil, 0, ErrAdminRequired
	}
	return s.auditRepo.List(ctx, filter)
}

/*
 * Helpers
 */

// checkOwner allows admins and the resource owner.
func (s *dashboardService) checkOwner(sess *session.Session, ownerID int64) error {
	snap := sess.Snapshot()
	if !snap.Authenticated {
		return action.ErrUnauthenticated
	}
	osmID, _ := strconv.ParseInt(snap.OsmID, 10, 64)
	if !(model.Profile{OsmID: osmID, IsAdmin: snap.IsAdmin}).CanEdit(ownerID) {
		return ErrForbidden
	}
	return nil
}

// audit records a mutation. Failures are logged, never returned: the
// mutation already happened upstream.
func (s *dashboardService) audit(ctx context.Context, sess *session.Session, act model.AuditAction, entity, entityID string, detail model.AuditDetail) {
	if s.auditRepo == nil {
		return
	}
	entry := &model.AuditEntry{
		ID:        uuid.New(),
		SessionID: sess.ID,
		ActorID:   sess.Snapshot().OsmID,
		Action:    act,
		Entity:    entity,
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("record audit entry",
			zap.String("action", string(act)),
			zap.String("entity", entity),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

// received views the terminal action of a fetch as a slot.
func received(rec state.Action) state.Result {
	return state.Wrap(state.Slot{Fetched: true, Data: rec.Data, Err: rec.Err})
}

func decodeOne(rec state.Action, dst any) error {
	return received(rec).Decode(dst)
}

func decodePage[T any](rec state.Action, page *Page[T]) error {
	r := received(rec)
	if err := r.Decode(&page.Results); err != nil {
		return err
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return r.DecodeMeta(&page.Meta)
}

// observeErr tags Observe 404s with ErrNotFound, keeping the original error
// in the chain.
func observeErr(err error) error {
	if err == nil {
		return nil
	}
	if fetch.StatusCode(err) == http.StatusNotFound && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
