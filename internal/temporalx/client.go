package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	sdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/retryx"
)

// NewClient dials the configured frontend, waiting up to DialMaxWait for it to
// come up. It returns a nil client when Temporal is not configured.
func NewClient(log *logger.Logger) (sdkclient.Client, error) {
	return Dial(context.Background(), LoadConfig(), log)
}

func Dial(ctx context.Context, cfg Config, log *logger.Logger) (sdkclient.Client, error) {
	if !cfg.Enabled() {
		if log != nil {
			log.Warn("TEMPORAL_ADDRESS not set; storyboard jobs run on the DB worker pool")
		}
		return nil, nil
	}
	opts, err := clientOptions(cfg, log, true)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if cfg.DialMaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.DialMaxWait)
		defer cancel()
	}

	var (
		c       sdkclient.Client
		lastErr error
	)
	policy := waitPolicy(cfg.DialMaxWait, cfg.DialBackoff, cfg.DialBackoffMax, nil)
	policy.OnRetry = func(n int, delay time.Duration, err error) {
		if log != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", n, "delay", delay, "error", err)
		}
	}
	err = policy.Do(waitCtx, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		dialed, err := sdkclient.DialContext(attemptCtx, opts)
		if err != nil {
			lastErr = err
			return err
		}
		c = dialed
		if attempt > 1 && log != nil {
			log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
		}
		return nil
	})
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		return nil, fmt.Errorf("temporal dial %s (namespace=%s): %w", cfg.Address, cfg.Namespace, err)
	}

	if cfg.RegisterNamespace {
		if err := EnsureNamespace(ctx, cfg, log); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// EnsureNamespace registers cfg.Namespace when the frontend reports it missing.
// Hosted deployments reject registration, so the namespace has to exist there.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	namespace := strings.TrimSpace(cfg.Namespace)
	if !cfg.Enabled() || namespace == "" {
		return nil
	}
	wait := cfg.NamespaceWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	// no namespace header on this client, it has to work before the namespace exists
	opts, err := clientOptions(cfg, log, false)
	if err != nil {
		return err
	}
	ns, err := sdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace client: %w", err)
	}
	defer ns.Close()

	policy := waitPolicy(wait, cfg.DialBackoff, cfg.DialBackoffMax, retryableRPC)
	policy.OnRetry = func(n int, _ time.Duration, err error) {
		if log != nil {
			log.Warn("Temporal namespace check retrying", "namespace", namespace, "attempt", n, "error", err)
		}
	}
	return policy.Do(ctx, func(ctx context.Context, _ int) error {
		_, err := ns.Describe(ctx, namespace)
		var missing *serviceerror.NamespaceNotFound
		if err == nil || !errors.As(err, &missing) {
			if err != nil {
				return fmt.Errorf("temporal describe namespace %s: %w", namespace, err)
			}
			return nil
		}

		err = ns.Register(ctx, &workflowservice.RegisterNamespaceRequest{
			Namespace:                        namespace,
			Description:                      "storyboard jobs",
			WorkflowExecutionRetentionPeriod: durationpb.New(cfg.retention()),
		})
		var exists *serviceerror.NamespaceAlreadyExists
		switch {
		case err == nil:
			if log != nil {
				log.Info("Registered Temporal namespace", "namespace", namespace, "retention", cfg.retention())
			}
			return nil
		case errors.As(err, &exists):
			return nil
		default:
			return fmt.Errorf("temporal register namespace %s: %w", namespace, err)
		}
	})
}

func clientOptions(cfg Config, log *logger.Logger, withNamespace bool) (sdkclient.Options, error) {
	opts := sdkclient.Options{HostPort: cfg.Address, Logger: log}
	if withNamespace {
		opts.Namespace = cfg.Namespace
	}
	if cfg.mTLS() {
		tlsCfg, err := loadTLS(cfg)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

func loadTLS(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, errors.New("temporal mTLS needs both TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal mTLS key pair: %w", err)
	}
	out := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return out, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal mTLS CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("temporal mTLS CA %s holds no certificates", cfg.ClientCAPath)
	}
	out.RootCAs = pool
	return out, nil
}

// waitPolicy retries until the caller's deadline. The attempt bound only keeps
// the loop finite when no deadline is set.
func waitPolicy(wait, base, max time.Duration, retryable func(error) bool) retryx.Policy {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	attempts := 1
	if wait > 0 {
		attempts = int(wait/base) + 1
	}
	return retryx.Policy{
		MaxAttempts: attempts,
		Backoff:     retryx.Exponential(base, max),
		Retryable:   retryable,
	}
}

func retryableRPC(err error) bool {
	s, ok := status.FromError(errors.Unwrap(err))
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}
