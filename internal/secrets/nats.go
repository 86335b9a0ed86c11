package secrets

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// NATSKVProvider reads secrets from an existing JetStream key-value bucket.
type NATSKVProvider struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	bucket string
}

// NewNATSKVProvider connects and binds to bucket. The bucket is not created: an absent
// bucket is a configuration error.
func NewNATSKVProvider(ctx context.Context, url, bucket string) (*NATSKVProvider, error) {
	conn, err := nats.Connect(url, nats.Name("dbtrunner"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", redact.URL(url)).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategorySecrets, "failed to create JetStream context").Build()
	}

	bindCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	kv, err := js.KeyValue(bindCtx, bucket)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to bind secrets bucket").
			WithContext("bucket", bucket).
			Build()
	}

	slog.Debug("NATS secret provider ready", logfields.URL(redact.URL(url)), "bucket", bucket)
	return &NATSKVProvider{conn: conn, kv: kv, bucket: bucket}, nil
}

func (p *NATSKVProvider) GetSecret(ctx context.Context, key string) (string, error) {
	getCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	entry, err := p.kv.Get(getCtx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return "", &MissingSecretError{Key: key, Provider: "nats"}
		}
		return "", errors.WrapError(err, errors.CategorySecrets, "failed to read secret").
			WithContext("key", key).
			WithContext("bucket", p.bucket).
			Build()
	}
	if len(entry.Value()) == 0 {
		return "", &MissingSecretError{Key: key, Provider: "nats"}
	}
	return string(entry.Value()), nil
}

// Close closes the NATS connection.
func (p *NATSKVProvider) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
