package sessions

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	boom := errors.New("connection reset")
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"active participant", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_participants_active"}, ErrDuplicateParticipant},
		{"wrapped active participant", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_participants_active"}), ErrDuplicateParticipant},
		{"other unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "sessions_channel_name_key"}, ErrConflict},
		{"missing session", &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "participants_session_id_fkey"}, ErrSessionNotFound},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, ErrStore},
		{"driver error", boom, ErrStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate("op", tc.err)
			if tc.want == nil {
				require.NoError(t, got)
				return
			}
			require.ErrorIs(t, got, tc.want)
		})
	}

	require.ErrorIs(t, translate("join", boom), boom)
	require.Contains(t, translate("join", boom).Error(), "join")
	require.Equal(t, http.StatusInternalServerError, StatusFor(translate("join", boom)))
	require.Equal(t, http.StatusConflict, StatusFor(translate("create", &pgconn.PgError{Code: pgUniqueViolation})))
}
