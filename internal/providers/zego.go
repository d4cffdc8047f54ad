package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ZEGOCLOUD/zego_server_assistant/token/go/src/token04"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callroom/broker/config"
	"github.com/callroom/broker/internal/models"
)

// zegoSecretLen is the length ZEGOCLOUD requires for server secrets.
const zegoSecretLen = 32

// RtcRoomPayload is the payload for room-based token (live streaming). See ZEGOCLOUD token04 docs.
type RtcRoomPayload struct {
	RoomID       string      `json:"RoomId"`
	Privilege    map[int]int `json:"Privilege"`
	StreamIDList []string    `json:"StreamIdList,omitempty"`
}

// Zego issues ZEGOCLOUD token04 tokens. The messaging token is a ZIM token (token04 with
// an empty payload).
type Zego struct {
	appID        uint32
	serverSecret string
	logger       *zap.Logger
}

// NewZego creates a ZEGOCLOUD provider from its config entry.
func NewZego(cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	z := &Zego{serverSecret: cfg.Option("server_secret"), logger: logger}
	if raw := cfg.Option("app_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("zego: invalid app_id %q: %w", raw, err)
		}
		z.appID = uint32(id)
	}
	return z, nil
}

// Name implements Provider.
func (z *Zego) Name() string { return config.ProviderZego }

// IsConfigured implements Provider.
func (z *Zego) IsConfigured() bool {
	return z.appID != 0 && z.serverSecret != ""
}

// zegoUserID resolves the ZEGOCLOUD user id. ZEGOCLOUD has no slot assignment, so uid 0
// gets a fresh identity.
func zegoUserID(subject Subject) string {
	if subject.IsAccount() {
		return subject.Account
	}
	if subject.UID == 0 {
		return "user_" + uuid.NewString()
	}
	return strconv.FormatUint(uint64(subject.UID), 10)
}

// GenerateToken implements Provider.
func (z *Zego) GenerateToken(_ context.Context, channel string, subject Subject, role models.Role) (*TokenResult, error) {
	if !z.IsConfigured() {
		return nil, fmt.Errorf("zego: %w", ErrNotConfigured)
	}
	role = normalizeRole(role)
	userID := zegoUserID(subject)
	token, err := GenerateRoomToken(z.appID, z.serverSecret, channel, userID, role, TokenTTLSeconds)
	if err != nil {
		return nil, err
	}
	z.logger.Debug("zego room token generated", zap.String("channel", channel), zap.String("user_id", userID), zap.String("role", string(role)))
	return &TokenResult{
		Token:     token,
		AppID:     strconv.FormatUint(uint64(z.appID), 10),
		Subject:   userID,
		Role:      role,
		Provider:  z.Name(),
		ExpiresIn: TokenTTLSeconds,
	}, nil
}

// GenerateSecondaryToken implements MessagingProvider.
func (z *Zego) GenerateSecondaryToken(_ context.Context, subject Subject) (*TokenResult, error) {
	if !z.IsConfigured() {
		return nil, fmt.Errorf("zego: %w", ErrNotConfigured)
	}
	if len(z.serverSecret) != zegoSecretLen {
		return nil, fmt.Errorf("zego: server_secret must be %d characters", zegoSecretLen)
	}
	userID := zegoUserID(subject)
	token, err := token04.GenerateToken04(z.appID, userID, z.serverSecret, TokenTTLSeconds, "")
	if err != nil {
		return nil, fmt.Errorf("zego: zim token: %w", err)
	}
	return &TokenResult{
		Token:     token,
		AppID:     strconv.FormatUint(uint64(z.appID), 10),
		Subject:   userID,
		Provider:  z.Name(),
		ExpiresIn: TokenTTLSeconds,
	}, nil
}

// Metadata implements Provider.
func (z *Zego) Metadata() Metadata {
	return Metadata{
		Name:               z.Name(),
		Configured:         z.IsConfigured(),
		Features:           []string{"video", "audio", "screen-sharing", "live-streaming", "real-time-messaging"},
		MaxParticipants:    50,
		SupportedPlatforms: []string{"web", "mobile", "desktop"},
	}
}

// GenerateRoomToken generates a ZEGOCLOUD token04 token for the given user and room.
// Publishing roles may push streams; audience may only log in and pull.
// serverSecret from the ZEGOCLOUD console must be 32 characters.
func GenerateRoomToken(appID uint32, serverSecret, roomID, userID string, role models.Role, effectiveTimeSec int64) (string, error) {
	if appID == 0 || serverSecret == "" {
		return "", fmt.Errorf("zego: app_id and server_secret required")
	}
	if len(serverSecret) != zegoSecretLen {
		return "", fmt.Errorf("zego: server_secret must be %d characters", zegoSecretLen)
	}
	privilege := map[int]int{
		token04.PrivilegeKeyLogin:   token04.PrivilegeEnable,
		token04.PrivilegeKeyPublish: token04.PrivilegeDisable,
	}
	if role.CanPublish() {
		privilege[token04.PrivilegeKeyPublish] = token04.PrivilegeEnable
	}
	payload := RtcRoomPayload{
		RoomID:    roomID,
		Privilege: privilege,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("zego: marshal payload: %w", err)
	}
	return token04.GenerateToken04(appID, userID, serverSecret, effectiveTimeSec, string(payloadJSON))
}
