// Package keystore provides named private-key custody over the backends selected
// by config.Keystore: a local encrypted directory or AWS Secrets Manager.
//
// Every operation is synchronous. Errors returned by this package are always
// *errors.KeyError values from orchestrator/errors; provider errors never escape.
package keystore

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pushchain/gorc/orchestrator/config"
	"github.com/pushchain/gorc/orchestrator/constant"
	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
	"github.com/pushchain/gorc/orchestrator/keys"
)

const (
	opLoad     = "load"
	opStore    = "store"
	opDelete   = "delete"
	opDescribe = "describe"
	opList     = "list"
	opInspect  = "inspect"
)

// Keystore dispatches key operations to the configured backend. It holds no
// key material and is safe for concurrent use.
type Keystore struct {
	variant          config.Keystore
	passphrase       string
	newSecretsClient SecretsClientFactory
	logger           zerolog.Logger

	permCheck sync.Once
}

// Option configures a Keystore
type Option func(*Keystore)

// WithPassphrase sets the file backend passphrase, overriding GORC_KEYSTORE_PASSPHRASE.
func WithPassphrase(passphrase string) Option {
	return func(ks *Keystore) {
		ks.passphrase = passphrase
	}
}

// WithSecretsClientFactory replaces how the aws backend builds its client for each call.
func WithSecretsClientFactory(factory SecretsClientFactory) Option {
	return func(ks *Keystore) {
		ks.newSecretsClient = factory
	}
}

// WithLogger sets the logger used for operation tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(ks *Keystore) {
		ks.logger = logger.With().Str("module", "keystore").Logger()
	}
}

// New returns a Keystore for variant.
func New(variant config.Keystore, opts ...Option) (*Keystore, error) {
	switch variant.Backend {
	case config.BackendFile:
		if variant.Path == "" {
			return nil, orcerrors.NewBackendUnavailableError("open", "", "file keystore path is empty", nil).
				WithBackend(variant.Backend.String())
		}
	case config.BackendAWS:
	default:
		return nil, orcerrors.NewBackendUnavailableError("open", "", "unknown keystore backend "+variant.Backend.String(), nil)
	}

	ks := &Keystore{
		variant:          variant,
		passphrase:       os.Getenv(constant.KeystorePassphraseEnv),
		newSecretsClient: NewSecretsClientFromEnv,
		logger:           log.Logger.With().Str("module", "keystore").Logger(),
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks, nil
}

// FromConfig returns the Keystore selected by cfg.
func FromConfig(cfg config.Config, opts ...Option) (*Keystore, error) {
	return New(cfg.Keystore, opts...)
}

// Backend reports the configured backend.
func (ks *Keystore) Backend() config.Backend {
	return ks.variant.Backend
}

// Load returns the document stored under name.
func (ks *Keystore) Load(name keys.KeyName) (*keys.KeyDocument, error) {
	if err := checkName(opLoad, name); err != nil {
		return nil, err
	}

	var (
		doc *keys.KeyDocument
		err error
	)
	switch ks.variant.Backend {
	case config.BackendFile:
		doc, err = ks.loadFile(name)
	case config.BackendAWS:
		doc, err = ks.loadSecret(name)
	default:
		err = ks.unknownBackend(opLoad, name)
	}
	ks.observe(opLoad, name, err)
	return doc, ks.tag(err)
}

// Store writes doc under name, replacing any existing key. replaced reports
// whether a key was overwritten.
func (ks *Keystore) Store(name keys.KeyName, doc *keys.KeyDocument) (replaced bool, err error) {
	if err := checkName(opStore, name); err != nil {
		return false, err
	}
	if doc == nil {
		return false, orcerrors.NewWriteRejectedError(opStore, name.String(), "no key document", nil)
	}

	switch ks.variant.Backend {
	case config.BackendFile:
		replaced, err = ks.storeFile(name, doc)
	case config.BackendAWS:
		replaced, err = ks.storeSecret(name, doc)
	default:
		err = ks.unknownBackend(opStore, name)
	}
	ks.observe(opStore, name, err)
	if err == nil && replaced {
		ks.logger.Warn().Str("key", name.String()).Str("backend", ks.variant.Backend.String()).
			Msg("existing key overwritten")
	}
	return replaced, ks.tag(err)
}

// Delete removes the key stored under name.
func (ks *Keystore) Delete(name keys.KeyName) error {
	if err := checkName(opDelete, name); err != nil {
		return err
	}

	var err error
	switch ks.variant.Backend {
	case config.BackendFile:
		err = ks.deleteFile(name)
	case config.BackendAWS:
		err = ks.deleteSecret(name)
	default:
		err = ks.unknownBackend(opDelete, name)
	}
	ks.observe(opDelete, name, err)
	return ks.tag(err)
}

// Describe returns metadata about the key stored under name.
func (ks *Keystore) Describe(name keys.KeyName) (*keys.KeyInfo, error) {
	if err := checkName(opDescribe, name); err != nil {
		return nil, err
	}

	var (
		info *keys.KeyInfo
		err  error
	)
	switch ks.variant.Backend {
	case config.BackendFile:
		info, err = ks.describeFile(name)
	case config.BackendAWS:
		info, err = ks.describeSecret(name)
	default:
		err = ks.unknownBackend(opDescribe, name)
	}
	ks.observe(opDescribe, name, err)
	if err != nil {
		return nil, ks.tag(err)
	}
	return info, nil
}

// Inspect returns the document stored under name together with its metadata.
// The file backend reads and decrypts the key once for both.
func (ks *Keystore) Inspect(name keys.KeyName) (*keys.KeyDocument, *keys.KeyInfo, error) {
	if err := checkName(opInspect, name); err != nil {
		return nil, nil, err
	}

	var (
		doc  *keys.KeyDocument
		info *keys.KeyInfo
		err  error
	)
	switch ks.variant.Backend {
	case config.BackendFile:
		doc, err = ks.readFile(opInspect, name)
		if err == nil {
			info = ks.fileInfo(name, doc)
		}
	case config.BackendAWS:
		doc, err = ks.loadSecret(name)
		if err == nil {
			info, err = ks.describeSecret(name)
		}
	default:
		err = ks.unknownBackend(opInspect, name)
	}
	ks.observe(opInspect, name, err)
	if err != nil {
		return nil, nil, ks.tag(err)
	}
	return doc, info, nil
}

// List returns the names of all stored keys.
func (ks *Keystore) List() ([]keys.KeyName, error) {
	var (
		names []keys.KeyName
		err   error
	)
	switch ks.variant.Backend {
	case config.BackendFile:
		names, err = ks.listFile()
	case config.BackendAWS:
		names, err = ks.listSecrets()
	default:
		err = ks.unknownBackend(opList, keys.KeyName{})
	}
	ks.observe(opList, keys.KeyName{}, err)
	return names, ks.tag(err)
}

func checkName(op string, name keys.KeyName) error {
	if name.IsZero() {
		return orcerrors.New(orcerrors.ErrCodeInvalidName, op, "", "key name was not validated", nil)
	}
	return nil
}

// tag attaches the backend to a KeyError on its way out.
func (ks *Keystore) tag(err error) error {
	if err == nil {
		return nil
	}
	var keyErr *orcerrors.KeyError
	if errors.As(err, &keyErr) {
		return keyErr.WithBackend(ks.variant.Backend.String())
	}
	return orcerrors.NewBackendUnavailableError("", "", "unexpected error", err).
		WithBackend(ks.variant.Backend.String())
}

func (ks *Keystore) observe(op string, name keys.KeyName, err error) {
	result := resultOK
	if err != nil {
		result = string(orcerrors.CodeOf(err))
		if result == "" {
			result = string(orcerrors.ErrCodeBackendUnavailable)
		}
	}
	operationsTotal.WithLabelValues(ks.variant.Backend.String(), op, result).Inc()

	ev := ks.logger.Debug().Str("op", op).Str("key", name.String()).
		Str("backend", ks.variant.Backend.String()).Str("result", result)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("keystore operation")
}

func (ks *Keystore) unknownBackend(op string, name keys.KeyName) error {
	return orcerrors.NewBackendUnavailableError(op, name.String(), "unknown keystore backend "+ks.variant.Backend.String(), nil)
}

// File backend

func (ks *Keystore) openFile(op string, name keys.KeyName) (*fileStore, error) {
	store, err := openFileStore(ks.variant.Path, ks.passphrase)
	if err != nil {
		return nil, orcerrors.NewBackendUnavailableError(op, name.String(), "failed to open keystore directory", err)
	}
	ks.permCheck.Do(func() {
		if perm, loose := store.looseMode(); loose {
			ks.logger.Warn().Str("path", ks.variant.Path).Str("current_perms", perm.String()).
				Msg("keystore directory permissions are not optimal (should be 700)")
		}
	})
	return store, nil
}

func (ks *Keystore) readFile(op string, name keys.KeyName) (*keys.KeyDocument, error) {
	store, err := ks.openFile(op, name)
	if err != nil {
		return nil, err
	}

	data, err := store.get(name)
	switch {
	case errors.Is(err, errEntryNotFound):
		return nil, orcerrors.NewNotFoundError(op, name.String())
	case errors.Is(err, errDecryptionFailed):
		return nil, orcerrors.NewCorruptError(op, name.String(), "key file could not be decrypted", err)
	case err != nil:
		return nil, orcerrors.NewBackendUnavailableError(op, name.String(), "failed to read key file", err)
	}

	doc, err := keys.ParsePEM(string(data))
	if err != nil {
		return nil, orcerrors.NewCorruptError(op, name.String(), "key file does not hold a key document", err)
	}
	return doc, nil
}

func (ks *Keystore) loadFile(name keys.KeyName) (*keys.KeyDocument, error) {
	return ks.readFile(opLoad, name)
}

func (ks *Keystore) storeFile(name keys.KeyName, doc *keys.KeyDocument) (bool, error) {
	store, err := ks.openFile(opStore, name)
	if err != nil {
		return false, err
	}

	replaced, err := store.put(name, []byte(doc.PEM()))
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, orcerrors.NewWriteRejectedError(opStore, name.String(), "keystore directory is not writable", err)
		}
		return false, orcerrors.NewBackendUnavailableError(opStore, name.String(), "failed to write key file", err)
	}
	return replaced, nil
}

func (ks *Keystore) deleteFile(name keys.KeyName) error {
	store, err := ks.openFile(opDelete, name)
	if err != nil {
		return err
	}

	err = store.remove(name)
	switch {
	case errors.Is(err, errEntryNotFound):
		return orcerrors.NewNotFoundError(opDelete, name.String())
	case err != nil:
		return orcerrors.NewBackendUnavailableError(opDelete, name.String(), "failed to remove key file", err)
	}
	return nil
}

func (ks *Keystore) describeFile(name keys.KeyName) (*keys.KeyInfo, error) {
	doc, err := ks.readFile(opDescribe, name)
	if err != nil {
		return nil, err
	}
	return ks.fileInfo(name, doc), nil
}

func (ks *Keystore) fileInfo(name keys.KeyName, doc *keys.KeyDocument) *keys.KeyInfo {
	return &keys.KeyInfo{
		Name:      name,
		Algorithm: doc.Algorithm(),
		Encrypted: ks.passphrase != "",
	}
}

func (ks *Keystore) listFile() ([]keys.KeyName, error) {
	store, err := ks.openFile(opList, keys.KeyName{})
	if err != nil {
		return nil, err
	}
	names, err := store.list()
	if err != nil {
		return nil, orcerrors.NewBackendUnavailableError(opList, "", "failed to list keystore directory", err)
	}
	return names, nil
}
