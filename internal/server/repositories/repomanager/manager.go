package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/ratelimits"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/verificationcodes"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	VerificationCodes(db dbx.DBTX) verificationcodes.Repository
	RateLimits(db dbx.DBTX) ratelimits.Repository
}
