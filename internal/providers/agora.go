package providers

import (
	"context"
	"fmt"

	"github.com/AgoraIO/Tools/DynamicKey/AgoraDynamicKey/go/src/rtctokenbuilder2"
	"github.com/AgoraIO/Tools/DynamicKey/AgoraDynamicKey/go/src/rtmtokenbuilder2"
	"go.uber.org/zap"

	"github.com/callroom/broker/config"
	"github.com/callroom/broker/internal/models"
)

// Agora issues RTC tokens for media and RTM tokens for the messaging channel.
type Agora struct {
	appID          string
	appCertificate string
	logger         *zap.Logger
}

// NewAgora creates an Agora provider from its config entry.
func NewAgora(cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agora{
		appID:          cfg.Option("app_id"),
		appCertificate: cfg.Option("app_certificate"),
		logger:         logger,
	}, nil
}

// Name implements Provider.
func (a *Agora) Name() string { return config.ProviderAgora }

// IsConfigured implements Provider.
func (a *Agora) IsConfigured() bool {
	return a.appID != "" && a.appCertificate != ""
}

// agoraRole maps a session role onto an RTC privilege set.
func agoraRole(role models.Role) rtctokenbuilder2.Role {
	if role.CanPublish() {
		return rtctokenbuilder2.RolePublisher
	}
	return rtctokenbuilder2.RoleSubscriber
}

// GenerateToken implements Provider. Account subjects get a user-account token (web clients);
// numeric subjects get a uid token, where uid 0 lets Agora assign one.
func (a *Agora) GenerateToken(_ context.Context, channel string, subject Subject, role models.Role) (*TokenResult, error) {
	if !a.IsConfigured() {
		return nil, fmt.Errorf("agora: %w", ErrNotConfigured)
	}
	role = normalizeRole(role)

	var (
		token string
		err   error
	)
	if subject.IsAccount() {
		token, err = rtctokenbuilder2.BuildTokenWithUserAccount(
			a.appID, a.appCertificate, channel, subject.Account,
			agoraRole(role), TokenTTLSeconds, TokenTTLSeconds,
		)
	} else {
		token, err = rtctokenbuilder2.BuildTokenWithUid(
			a.appID, a.appCertificate, channel, subject.UID,
			agoraRole(role), TokenTTLSeconds, TokenTTLSeconds,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("agora: build rtc token: %w", err)
	}

	a.logger.Debug("agora rtc token generated",
		zap.String("channel", channel),
		zap.String("subject", subject.String()),
		zap.Bool("account", subject.IsAccount()),
		zap.String("role", string(role)),
	)
	return &TokenResult{
		Token:     token,
		AppID:     a.appID,
		Subject:   subject.String(),
		Role:      role,
		Provider:  a.Name(),
		ExpiresIn: TokenTTLSeconds,
	}, nil
}

// GenerateSecondaryToken implements MessagingProvider with an RTM token. RTM always addresses
// users by string.
func (a *Agora) GenerateSecondaryToken(_ context.Context, subject Subject) (*TokenResult, error) {
	if !a.IsConfigured() {
		return nil, fmt.Errorf("agora: %w", ErrNotConfigured)
	}
	token, err := rtmtokenbuilder2.BuildToken(a.appID, a.appCertificate, subject.String(), TokenTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("agora: build rtm token: %w", err)
	}
	return &TokenResult{
		Token:     token,
		AppID:     a.appID,
		Subject:   subject.String(),
		Provider:  a.Name(),
		ExpiresIn: TokenTTLSeconds,
	}, nil
}

// Metadata implements Provider.
func (a *Agora) Metadata() Metadata {
	return Metadata{
		Name:       a.Name(),
		Configured: a.IsConfigured(),
		Features: []string{
			"video",
			"audio",
			"screen-sharing",
			"recording",
			"real-time-messaging",
		},
		MaxParticipants:    17,
		SupportedPlatforms: []string{"web", "mobile", "desktop"},
	}
}
