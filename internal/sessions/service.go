package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callroom/broker/internal/models"
	"github.com/callroom/broker/internal/providers"
	"github.com/callroom/broker/pkg/metrics"
)

// ProviderLookup resolves providers by name. *providers.Registry implements it.
type ProviderLookup interface {
	Get(name string) (providers.Provider, error)
	Default() (providers.Provider, bool)
	List() []providers.Available
}

// Notifier receives lifecycle events for realtime fan-out. Delivery is best effort and
// never reported back to the caller.
type Notifier interface {
	SessionEnded(sessionID, endedBy string)
	ParticipantLeft(sessionID, userID, userName string)
}

// CreateInput is the input of Service.Create.
type CreateInput struct {
	HostID   string
	HostName string
	Title    string
	Provider string
	// HostNumeric marks HostID as a 32-bit numeric slot rather than an account name.
	HostNumeric bool
}

// JoinInput is the input of Service.Join.
type JoinInput struct {
	UserID   string
	UserName string
	Role     models.Role
	Numeric  bool
}

// View is returned by Create and Join: the session, the caller's credentials and the
// current active participants.
type View struct {
	SessionID    uuid.UUID            `json:"session_id"`
	ChannelName  string               `json:"channel_name"`
	Provider     string               `json:"provider"`
	AppID        string               `json:"app_id"`
	UserID       string               `json:"user_id"`
	Role         models.Role          `json:"role"`
	Token        string               `json:"token"`
	RTMToken     *string              `json:"rtm_token"`
	ExpiresIn    int                  `json:"expires_in"`
	Session      models.Session       `json:"session"`
	Participant  models.Participant   `json:"participant"`
	Participants []models.Participant `json:"participants"`
}

// Detail is returned by Get.
type Detail struct {
	models.Session
	Participants []models.Participant `json:"participants"`
}

// EndResult is returned by End.
type EndResult struct {
	ID      uuid.UUID            `json:"id"`
	Status  models.SessionStatus `json:"status"`
	EndedAt *time.Time           `json:"ended_at"`
}

// Service implements the session lifecycle: create, get, join, leave and end.
type Service struct {
	store     Store
	providers ProviderLookup
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a session service. notifier may be nil.
func NewService(store Store, lookup ProviderLookup, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		providers: lookup,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Providers lists the registered providers.
func (s *Service) Providers() []providers.Available {
	return s.providers.List()
}

// Ping checks store reachability.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Create opens a session and registers its creator as host. The host token is minted before
// anything is written, and the session row and host row are written in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	ctx = context.WithoutCancel(ctx)
	in.HostID = strings.TrimSpace(in.HostID)
	in.HostName = strings.TrimSpace(in.HostName)
	if in.HostID == "" || in.HostName == "" {
		return nil, s.fail("create", invalid("host id and host name are required"))
	}

	provider, err := s.resolveProvider(strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, s.fail("create", err)
	}

	now := s.now()
	session := &models.Session{
		ID:          uuid.New(),
		HostID:      in.HostID,
		HostName:    in.HostName,
		Provider:    provider.Name(),
		ChannelName: "session_" + uuid.NewString(),
		Status:      models.SessionActive,
		StartedAt:   now,
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		session.Title = &title
	}
	host := &models.Participant{
		ID:        uuid.New(),
		SessionID: session.ID,
		UserID:    in.HostID,
		UserName:  in.HostName,
		Role:      models.RoleHost,
		Status:    models.ParticipantActive,
		JoinedAt:  now,
	}

	subject := subjectFor(in.HostID, in.HostNumeric)
	token, err := s.mintToken(ctx, provider, session.ChannelName, subject, models.RoleHost)
	if err != nil {
		return nil, s.fail("create", err)
	}
	rtm := s.secondaryToken(ctx, provider, subject)

	if err := s.store.CreateSession(ctx, session, host); err != nil {
		return nil, s.fail("create", storeErr("create session", err))
	}

	metrics.SessionsCreated.WithLabelValues(provider.Name()).Inc()
	s.logger.Info("session created",
		zap.String("session_id", session.ID.String()),
		zap.String("host_id", session.HostID),
		zap.String("provider", session.Provider),
		zap.String("channel", session.ChannelName),
	)
	return buildView(session, host, []models.Participant{*host}, token, rtm), nil
}

// Get returns a session with its currently active participants.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	ctx = context.WithoutCancel(ctx)
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, s.fail("get", err)
	}
	active, err := s.store.ListActiveParticipants(ctx, session.ID)
	if err != nil {
		return nil, s.fail("get", storeErr("list participants", err))
	}
	return &Detail{Session: *session, Participants: active}, nil
}

// Join adds a user to an active session, or reuses the user's active membership, and returns
// a token from the provider the session was created with. A requested host role is
// downgraded to participant.
func (s *Service) Join(ctx context.Context, id string, in JoinInput) (*View, error) {
	ctx = context.WithoutCancel(ctx)
	in.UserID = strings.TrimSpace(in.UserID)
	in.UserName = strings.TrimSpace(in.UserName)
	if in.UserID == "" || in.UserName == "" {
		return nil, s.fail("join", invalid("user id and user name are required"))
	}
	role := in.Role
	switch {
	case role == "":
		role = models.RoleParticipant
	case !role.Valid():
		return nil, s.fail("join", invalid(fmt.Sprintf("unknown role %q", role)))
	case role == models.RoleHost:
		role = models.RoleParticipant
	}

	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, s.fail("join", err)
	}
	if !session.IsActive() {
		return nil, s.fail("join", ErrSessionNotActive)
	}

	provider, err := s.providers.Get(session.Provider)
	if err != nil || !provider.IsConfigured() {
		return nil, s.fail("join", fmt.Errorf("%w: %s", ErrProviderUnavailable, session.Provider))
	}

	participant, err := s.store.FindActiveParticipant(ctx, session.ID, in.UserID)
	if err != nil {
		return nil, s.fail("join", storeErr("find participant", err))
	}
	rejoin := participant != nil
	if !rejoin {
		participant = &models.Participant{
			ID:        uuid.New(),
			SessionID: session.ID,
			UserID:    in.UserID,
			UserName:  in.UserName,
			Role:      role,
			Status:    models.ParticipantActive,
			JoinedAt:  s.now(),
		}
	}

	subject := subjectFor(in.UserID, in.Numeric)
	token, err := s.mintToken(ctx, provider, session.ChannelName, subject, participant.Role)
	if err != nil {
		return nil, s.fail("join", err)
	}
	rtm := s.secondaryToken(ctx, provider, subject)

	if !rejoin {
		if err := s.store.AddParticipant(ctx, participant); err != nil {
			return nil, s.fail("join", storeErr("add participant", err))
		}
	}

	active, err := s.store.ListActiveParticipants(ctx, session.ID)
	if err != nil {
		return nil, s.fail("join", storeErr("list participants", err))
	}

	result := "new"
	if rejoin {
		result = "rejoin"
	}
	metrics.SessionJoins.WithLabelValues(provider.Name(), result).Inc()
	s.logger.Info("participant joined",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", participant.UserID),
		zap.String("role", string(participant.Role)),
		zap.Bool("rejoin", rejoin),
	)
	return buildView(session, participant, active, token, rtm), nil
}

// Leave marks the user's active membership as left. The session itself stays active, even
// when the host leaves.
func (s *Service) Leave(ctx context.Context, id, userID string) error {
	ctx = context.WithoutCancel(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return s.fail("leave", invalid("user id is required"))
	}
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return s.fail("leave", err)
	}
	participant, err := s.store.FindActiveParticipant(ctx, session.ID, userID)
	if err != nil {
		return s.fail("leave", storeErr("find participant", err))
	}
	if participant == nil {
		return s.fail("leave", ErrParticipantNotFound)
	}
	left, err := s.store.LeaveParticipant(ctx, session.ID, userID, s.now())
	if err != nil {
		return s.fail("leave", storeErr("leave participant", err))
	}
	if !left {
		return s.fail("leave", ErrParticipantNotFound)
	}
	s.logger.Info("participant left", zap.String("session_id", session.ID.String()), zap.String("user_id", userID))
	if s.notifier != nil {
		s.notifier.ParticipantLeft(session.ID.String(), userID, participant.UserName)
	}
	return nil
}

// End terminates a session on behalf of its host. Ending an ended session returns the stored
// terminal state and does not notify again.
func (s *Service) End(ctx context.Context, id, requesterID string) (*EndResult, error) {
	ctx = context.WithoutCancel(ctx)
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, s.fail("end", invalid("user id is required"))
	}
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, s.fail("end", err)
	}
	if session.HostID != requesterID {
		return nil, s.fail("end", ErrNotHost)
	}
	if !session.IsActive() {
		return endResult(session), nil
	}

	ended, err := s.store.EndSession(ctx, session.ID, s.now())
	if err != nil {
		return nil, s.fail("end", storeErr("end session", err))
	}
	// Re-read so EndedAt is the stored value, including when a concurrent call won.
	session, err = s.store.GetSession(ctx, session.ID)
	if err != nil {
		return nil, s.fail("end", storeErr("get session", err))
	}
	if !ended {
		return endResult(session), nil
	}

	metrics.SessionsEnded.Inc()
	s.logger.Info("session ended", zap.String("session_id", session.ID.String()), zap.String("ended_by", requesterID))
	if s.notifier != nil {
		s.notifier.SessionEnded(session.ID.String(), requesterID)
	}
	return endResult(session), nil
}

// ActiveParticipant returns the user's active membership, or nil. It backs realtime
// enrichment, where an unknown session simply yields nil.
func (s *Service) ActiveParticipant(ctx context.Context, sessionID, userID string) (*models.Participant, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, nil
	}
	p, err := s.store.FindActiveParticipant(ctx, id, userID)
	if err != nil {
		return nil, storeErr("find participant", err)
	}
	return p, nil
}

func (s *Service) loadSession(ctx context.Context, id string) (*models.Session, error) {
	sid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrSessionNotFound
	}
	session, err := s.store.GetSession(ctx, sid)
	if err != nil {
		return nil, storeErr("get session", err)
	}
	return session, nil
}

func (s *Service) resolveProvider(name string) (providers.Provider, error) {
	var (
		p   providers.Provider
		err error
	)
	if name != "" {
		p, err = s.providers.Get(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, name)
		}
	} else {
		var ok bool
		if p, ok = s.providers.Default(); !ok {
			return nil, fmt.Errorf("%w: default", ErrProviderUnavailable)
		}
	}
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %s is not properly configured", ErrProviderUnavailable, p.Name())
	}
	return p, nil
}

func (s *Service) mintToken(ctx context.Context, p providers.Provider, channel string, subject providers.Subject, role models.Role) (*providers.TokenResult, error) {
	res, err := p.GenerateToken(ctx, channel, subject, role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	metrics.TokensIssued.WithLabelValues(p.Name(), "media").Inc()
	return res, nil
}

// secondaryToken returns the messaging token, or nil when the provider cannot produce one.
// Failures are logged and never fail the caller.
func (s *Service) secondaryToken(ctx context.Context, p providers.Provider, subject providers.Subject) *string {
	res, err := providers.GenerateSecondaryToken(ctx, p, subject)
	if err != nil {
		if !errors.Is(err, providers.ErrSecondaryUnsupported) {
			metrics.SecondaryTokenFailures.WithLabelValues(p.Name()).Inc()
			s.logger.Warn("messaging token unavailable", zap.String("provider", p.Name()), zap.String("subject", subject.String()), zap.Error(err))
		}
		return nil
	}
	metrics.TokensIssued.WithLabelValues(p.Name(), "messaging").Inc()
	return &res.Token
}

// fail records a failed operation and returns err unchanged.
func (s *Service) fail(op string, err error) error {
	kind := errorKind(err)
	metrics.OperationErrors.WithLabelValues(op, kind).Inc()
	if kind == "internal" || kind == "store" || kind == "provider" {
		s.logger.Error("session operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

// storeErr wraps unexpected store errors in ErrStore, leaving contract errors alone.
func storeErr(op string, err error) error {
	if errorKind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// errorKind classifies err into its taxonomy category.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrStore):
		return "store"
	}
	return "internal"
}

func buildView(session *models.Session, p *models.Participant, active []models.Participant, token *providers.TokenResult, rtm *string) *View {
	if active == nil {
		active = []models.Participant{}
	}
	return &View{
		SessionID:    session.ID,
		ChannelName:  session.ChannelName,
		Provider:     session.Provider,
		AppID:        token.AppID,
		UserID:       p.UserID,
		Role:         p.Role,
		Token:        token.Token,
		RTMToken:     rtm,
		ExpiresIn:    token.ExpiresIn,
		Session:      *session,
		Participant:  *p,
		Participants: active,
	}
}

func endResult(s *models.Session) *EndResult {
	return &EndResult{ID: s.ID, Status: s.Status, EndedAt: s.EndedAt}
}
