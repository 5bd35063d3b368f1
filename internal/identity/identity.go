// Package identity feeds the credential store from the AWS credential chain.
//
// Object store credentials for role-based assets rotate; this refresher
// resolves the current credential from the standard chain (environment,
// shared config, IMDS) on an interval and overwrites the store entry for the
// configured host. The signing and fetch layers only ever read the store.
package identity

import (
	"context"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/groundstore/groundstore/internal/creds"
	"github.com/groundstore/groundstore/internal/timelib"
)

// Refresher periodically resolves credentials and stores them under Host.
type Refresher struct {
	// Host is the credential store entry to maintain.
	Host string
	// Interval is the refresh period.
	Interval time.Duration
	// Store receives the resolved credentials.
	Store interface {
		Put(host string, cred creds.Credential) bool
	}
}

// Run resolves once immediately, then on every interval tick until the
// context is cancelled. Resolution failures are logged and retried on the
// next tick; the store keeps its previous entry in the meantime.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh resolves the current credential from the default chain and puts
// it into the store.
func (r *Refresher) refresh(ctx context.Context) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config for credential refresh", "host", r.Host, "err", err)
		return
	}

	resolved, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		slog.Error("failed to resolve credentials", "host", r.Host, "err", err)
		return
	}

	cred := creds.Credential{
		AccessKeyID:     resolved.AccessKeyID,
		SecretAccessKey: resolved.SecretAccessKey,
		SessionToken:    resolved.SessionToken,
		Provided:        true,
	}
	if resolved.CanExpire {
		cred.ExpirationGPS = timelib.ToGPSMS(resolved.Expires)
	}

	r.Store.Put(r.Host, cred)
	slog.Info("refreshed credentials", "host", r.Host, "expires", resolved.CanExpire)
}
