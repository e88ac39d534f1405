package s3store

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/hedisam/tiersync/storage/objects"
)

// noSuchKeyCode is reported per key by DeleteObjects for keys that are already gone.
const noSuchKeyCode = "NoSuchKey"

// classify wraps err with the objects error taxonomy so callers can decide about retries with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", noSuchKeyCode, "NotFound":
			return fmt.Errorf("%w: %w", objects.ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return fmt.Errorf("%w: %w", objects.ErrAccessDenied, err)
		case "InternalError", "ServiceUnavailable", "SlowDown", "RequestTimeout", "Throttling", "RequestTimeTooSkewed":
			return fmt.Errorf("%w: %w", objects.ErrTransient, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch status := respErr.HTTPStatusCode(); {
		case status == http.StatusNotFound:
			return fmt.Errorf("%w: %w", objects.ErrNotFound, err)
		case status == http.StatusForbidden || status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", objects.ErrAccessDenied, err)
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", objects.ErrTransient, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", objects.ErrTransient, err)
	}

	return err
}
