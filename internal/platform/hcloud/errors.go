package hcloud

import (
	"errors"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// isRetryable checks if an API error is transient.
func isRetryable(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeRateLimitExceeded,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceUnavailable,
		hcloud.ErrorCodeServiceError,
		hcloud.ErrorCodeTimeout,
	)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsUnauthorized checks if an error indicates a bad token.
func IsUnauthorized(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeUnauthorized)
}
