package keystore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"

	orcerrors "github.com/pushchain/gorc/orchestrator/errors"
	"github.com/pushchain/gorc/orchestrator/keys"
)

// errCodeAccessDenied is the generic AWS authorization failure code.
const errCodeAccessDenied = "AccessDeniedException"

// writeRejectedCodes are service answers to a store request that mean the
// write was refused rather than that the service could not be reached.
var writeRejectedCodes = map[string]bool{
	errCodeAccessDenied:                                   true,
	secretsmanager.ErrCodeInvalidParameterException:       true,
	secretsmanager.ErrCodeInvalidRequestException:         true,
	secretsmanager.ErrCodeLimitExceededException:          true,
	secretsmanager.ErrCodeEncryptionFailure:               true,
	secretsmanager.ErrCodePreconditionNotMetException:     true,
	secretsmanager.ErrCodeMalformedPolicyDocumentException: true,
}

// SecretsClientFactory builds a Secrets Manager client. It is called once per operation.
type SecretsClientFactory func() (secretsmanageriface.SecretsManagerAPI, error)

// NewSecretsClientFromEnv builds a client from the ambient AWS environment
// (AWS_REGION, credentials chain, shared config files).
func NewSecretsClientFromEnv() (secretsmanageriface.SecretsManagerAPI, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return secretsmanager.New(sess), nil
}

type clientSetupError struct {
	err error
}

func (e *clientSetupError) Error() string {
	return "failed to configure secrets manager client: " + e.err.Error()
}

// blockOn runs call on a dedicated goroutine with a fresh client and blocks
// until it returns. No deadline is applied.
func blockOn[T any](newClient SecretsClientFactory, call func(context.Context, secretsmanageriface.SecretsManagerAPI) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		client, err := newClient()
		if err != nil {
			done <- result{err: &clientSetupError{err: err}}
			return
		}
		value, err := call(context.Background(), client)
		done <- result{value: value, err: err}
	}()

	r := <-done
	return r.value, r.err
}

// translateSecretsError maps a provider error onto the key error taxonomy.
// The cause is flattened to text so no AWS type is reachable through Unwrap.
func translateSecretsError(op string, name keys.KeyName, err error) error {
	var setupErr *clientSetupError
	if errors.As(err, &setupErr) {
		return orcerrors.NewBackendUnavailableError(op, name.String(), "secrets manager is not configured", flatten(setupErr.err))
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		code := aerr.Code()
		switch {
		case op == opStore && writeRejectedCodes[code]:
			return orcerrors.NewWriteRejectedError(op, name.String(), "secrets manager refused the write", flatten(aerr))
		case code == secretsmanager.ErrCodeResourceNotFoundException:
			return orcerrors.NewNotFoundError(op, name.String())
		case code == secretsmanager.ErrCodeInvalidRequestException && isMarkedForDeletion(aerr):
			return orcerrors.NewNotFoundError(op, name.String())
		}
		return orcerrors.NewBackendUnavailableError(op, name.String(), "secrets manager request failed", flatten(aerr))
	}

	return orcerrors.NewBackendUnavailableError(op, name.String(), "secrets manager request failed", flatten(err))
}

func isMarkedForDeletion(aerr awserr.Error) bool {
	return strings.Contains(strings.ToLower(aerr.Message()), "marked for deletion")
}

func flatten(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(err.Error())
}

func isAWSCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}

func (ks *Keystore) loadSecret(name keys.KeyName) (*keys.KeyDocument, error) {
	out, err := blockOn(ks.newSecretsClient, func(ctx context.Context, client secretsmanageriface.SecretsManagerAPI) (*secretsmanager.GetSecretValueOutput, error) {
		return client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(name.String()),
		})
	})
	if err != nil {
		return nil, translateSecretsError(opLoad, name, err)
	}

	var doc *keys.KeyDocument
	switch {
	case out.SecretString != nil:
		doc, err = keys.ParsePEM(*out.SecretString)
	case len(out.SecretBinary) > 0:
		doc, err = keys.ParseDER(out.SecretBinary)
	default:
		return nil, orcerrors.NewCorruptError(opLoad, name.String(), "secret has no value", nil)
	}
	if err != nil {
		return nil, orcerrors.NewCorruptError(opLoad, name.String(), "secret does not hold a key document", err)
	}
	return doc, nil
}

// storeSecret creates the secret, or writes a new version when it already exists.
func (ks *Keystore) storeSecret(name keys.KeyName, doc *keys.KeyDocument) (bool, error) {
	secret := doc.PEM()
	replaced, err := blockOn(ks.newSecretsClient, func(ctx context.Context, client secretsmanageriface.SecretsManagerAPI) (bool, error) {
		_, err := client.CreateSecretWithContext(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(name.String()),
			SecretString: aws.String(secret),
		})
		if !isAWSCode(err, secretsmanager.ErrCodeResourceExistsException) {
			return false, err
		}

		_, err = client.PutSecretValueWithContext(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(name.String()),
			SecretString: aws.String(secret),
		})
		return err == nil, err
	})
	if err != nil {
		return false, translateSecretsError(opStore, name, err)
	}
	return replaced, nil
}

// deleteSecret schedules the secret for deletion. If the response is lost after
// the service accepted the request, a retry reports NotFound.
func (ks *Keystore) deleteSecret(name keys.KeyName) error {
	input := &secretsmanager.DeleteSecretInput{
		SecretId: aws.String(name.String()),
	}
	if ks.variant.RecoveryWindowDays > 0 {
		input.RecoveryWindowInDays = aws.Int64(ks.variant.RecoveryWindowDays)
	}

	_, err := blockOn(ks.newSecretsClient, func(ctx context.Context, client secretsmanageriface.SecretsManagerAPI) (*secretsmanager.DeleteSecretOutput, error) {
		return client.DeleteSecretWithContext(ctx, input)
	})
	if err != nil {
		return translateSecretsError(opDelete, name, err)
	}
	return nil
}

func (ks *Keystore) describeSecret(name keys.KeyName) (*keys.KeyInfo, error) {
	out, err := blockOn(ks.newSecretsClient, func(ctx context.Context, client secretsmanageriface.SecretsManagerAPI) (*secretsmanager.DescribeSecretOutput, error) {
		return client.DescribeSecretWithContext(ctx, &secretsmanager.DescribeSecretInput{
			SecretId: aws.String(name.String()),
		})
	})
	if err != nil {
		return nil, translateSecretsError(opDescribe, name, err)
	}

	if out.DeletedDate != nil {
		return nil, orcerrors.NewNotFoundError(opDescribe, name.String())
	}
	if out.Name == nil {
		return nil, orcerrors.NewCorruptError(opDescribe, name.String(), "describe response has no secret name", nil)
	}
	described, err := keys.NewKeyName(aws.StringValue(out.Name))
	if err != nil {
		return nil, orcerrors.NewCorruptError(opDescribe, name.String(), "secret name is not a valid key name", err)
	}

	return &keys.KeyInfo{
		Name:      described,
		Encrypted: out.KmsKeyId != nil,
	}, nil
}

func (ks *Keystore) listSecrets() ([]keys.KeyName, error) {
	names, err := blockOn(ks.newSecretsClient, func(ctx context.Context, client secretsmanageriface.SecretsManagerAPI) ([]keys.KeyName, error) {
		var names []keys.KeyName
		err := client.ListSecretsPagesWithContext(ctx, &secretsmanager.ListSecretsInput{},
			func(page *secretsmanager.ListSecretsOutput, lastPage bool) bool {
				for _, entry := range page.SecretList {
					if entry.DeletedDate != nil {
						continue
					}
					name, err := keys.NewKeyName(aws.StringValue(entry.Name))
					if err != nil {
						continue
					}
					names = append(names, name)
				}
				return true
			})
		return names, err
	})
	if err != nil {
		return nil, translateSecretsError(opList, keys.KeyName{}, err)
	}

	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names, nil
}
