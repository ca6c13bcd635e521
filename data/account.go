package data

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/manniwood/pgxtras"
	"golang.org/x/crypto/pbkdf2"
)

const (
	digestIterations = 4096
	digestKeyLen     = 32
)

// accountColumns is the full projection of an account row.
const accountColumns = `id, email, name, created_at, modified_at,
	skritter_user, skritter_access_token, skritter_refresh_token, skritter_token_expiry`

// Account is one account row. The skritter fields are NULL for accounts
// not linked to the external flashcard service.
type Account struct {
	ID                   int64
	Email                string
	Name                 string
	CreatedAt            time.Time
	ModifiedAt           time.Time
	SkritterUser         *string
	SkritterAccessToken  *string
	SkritterRefreshToken *string
	SkritterTokenExpiry  *time.Time
}

// AccountData is the account repository. Same correlation pattern as
// ListData: every operation dispatches asynchronously and reports through
// its callback exactly once.
type AccountData struct {
	d       *Dispatcher
	log     *slog.Logger
	apiUser string
	apiPass string
}

// NewAccountData returns an AccountData issuing queries through d. apiUser
// and apiPass are the static credentials gating the HTTP API.
func NewAccountData(d *Dispatcher, log *slog.Logger, apiUser, apiPass string) *AccountData {
	return &AccountData{d: d, log: log, apiUser: apiUser, apiPass: apiPass}
}

// NewRandomSecret generates a throwaway cookie secret for deployments that
// have not configured one.
func NewRandomSecret() string {
	return uuid.NewString()
}

// BuildPasswordDigest derives the stored password hash from a cleartext
// password and a per-account salt. Same salt and password always derive the
// same digest.
func BuildPasswordDigest(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), digestIterations, digestKeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// AuthenticateAPIUser checks the static API credentials. These come from
// process configuration, not the store, and gate only the low-value
// internal API.
func (ad *AccountData) AuthenticateAPIUser(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(ad.apiUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(ad.apiPass)) == 1
	return userOK && passOK
}

// webCredentials is the projection AuthenticateWebUser verifies against.
type webCredentials struct {
	ID           int64
	Email        string
	PasswordHash string
	PasswordSalt string
}

// AuthenticateWebUser looks up the account named user, verifies the salted
// password digest, and on success reports (accountID, nextURL, email, true).
// Every failure — no such user, wrong password, store error — reports
// uniformly as ok false; callers learn the difference only from the logs.
func (ad *AccountData) AuthenticateWebUser(ctx context.Context, user, pass, nextURL string, cb func(accountID int64, redirectURL, email string, ok bool)) {
	op := Op{
		SQL:  `SELECT id, email, password_hash, password_salt FROM account WHERE name = $1`,
		Args: []any{user},
		Rock: user,
		Done: func(rows pgx.Rows, err error, rock string) {
			if err != nil {
				ad.log.Warn("could not authenticate web user", "user", rock, "error", err)
				cb(0, "", "", false)
				return
			}
			creds, ok, err := pgxtras.CollectOneRowOK(rows, pgx.RowToStructByPos[webCredentials])
			if err != nil {
				ad.log.Warn("could not read credentials", "user", rock, "error", err)
				cb(0, "", "", false)
				return
			}
			if !ok {
				ad.log.Warn("no such web user", "user", rock)
				cb(0, "", "", false)
				return
			}
			digest := BuildPasswordDigest(pass, creds.PasswordSalt)
			if subtle.ConstantTimeCompare([]byte(digest), []byte(creds.PasswordHash)) != 1 {
				ad.log.Warn("wrong password for web user", "user", rock)
				cb(0, "", "", false)
				return
			}
			cb(creds.ID, nextURL, creds.Email, true)
		},
	}
	if err := ad.d.DispatchOne(ctx, op); err != nil {
		ad.log.Error("could not dispatch web authentication", "error", err)
		cb(0, "", "", false)
	}
}

// GetAccount fetches an account by email. The callback receives nil when
// the account is absent or the store fails.
func (ad *AccountData) GetAccount(ctx context.Context, email string, cb func(acct *Account)) {
	op := Op{
		SQL:  `SELECT ` + accountColumns + ` FROM account WHERE email = $1`,
		Args: []any{email},
		Rock: email,
		Done: ad.onGetAccount(cb),
	}
	if err := ad.d.DispatchOne(ctx, op); err != nil {
		ad.log.Error("could not dispatch account query", "error", err)
		cb(nil)
	}
}

// GetAccountByID fetches an account by id. Same shape as GetAccount.
func (ad *AccountData) GetAccountByID(ctx context.Context, accountID int64, cb func(acct *Account)) {
	op := Op{
		SQL:  `SELECT ` + accountColumns + ` FROM account WHERE id = $1`,
		Args: []any{accountID},
		Rock: strconv.FormatInt(accountID, 10),
		Done: ad.onGetAccount(cb),
	}
	if err := ad.d.DispatchOne(ctx, op); err != nil {
		ad.log.Error("could not dispatch account query", "error", err)
		cb(nil)
	}
}

func (ad *AccountData) onGetAccount(cb func(acct *Account)) ResultFunc {
	return func(rows pgx.Rows, err error, rock string) {
		if err != nil {
			ad.log.Warn("could not fetch account", "key", rock, "error", err)
			cb(nil)
			return
		}
		acct, ok, err := pgxtras.CollectOneRowOK(rows, pgxtras.RowToStructBySimpleName[Account])
		if err != nil {
			ad.log.Warn("could not collect account", "key", rock, "error", err)
			cb(nil)
			return
		}
		if !ok {
			cb(nil)
			return
		}
		cb(&acct)
	}
}

// UpdateAccount replaces an account's email, name, and password. A fresh
// salt is generated for the new password. cb reports whether exactly one
// row was updated.
func (ad *AccountData) UpdateAccount(ctx context.Context, accountID int64, email, user, pass string, cb func(ok bool)) {
	salt := uuid.NewString()
	op := Op{
		SQL: `UPDATE account
		         SET email = $1, name = $2, password_hash = $3, password_salt = $4, modified_at = now()
		       WHERE id = $5`,
		Args: []any{email, user, BuildPasswordDigest(pass, salt), salt, accountID},
		Rock: strconv.FormatInt(accountID, 10),
		Done: func(rows pgx.Rows, err error, rock string) {
			if err != nil {
				ad.log.Warn("could not update account", "account_id", rock, "error", err)
				cb(false)
				return
			}
			rows.Close()
			if rows.Err() != nil {
				ad.log.Warn("could not update account", "account_id", rock, "error", rows.Err())
				cb(false)
				return
			}
			cb(rows.CommandTag().RowsAffected() == 1)
		},
	}
	if err := ad.d.DispatchOne(ctx, op); err != nil {
		ad.log.Error("could not dispatch account update", "error", err)
		cb(false)
	}
}
