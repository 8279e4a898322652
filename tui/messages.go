package tui

import (
	"time"
)

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionFound signals that stored tokens were loaded.
type MsgSessionFound struct{ Path string }

// MsgSessionMissing signals that no stored session exists.
type MsgSessionMissing struct{}

// MsgLoggedOut signals that the stored session was removed.
type MsgLoggedOut struct{ Path string }

// MsgLoggingIn signals that a password login is in progress.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals a successful login.
type MsgLoginOK struct{ Name string }

// MsgTokenSaved signals that tokens were persisted.
type MsgTokenSaved struct{ Path string }

// MsgTokenSaveFailed signals that persisting tokens failed.
type MsgTokenSaveFailed struct{ Err error }

// MsgLoading signals that a resource is being fetched.
type MsgLoading struct{ Resource string }

// MsgLoaded signals that a resource was fetched.
type MsgLoaded struct {
	Resource string
	Detail   string
}

// MsgLoadFailed signals that fetching a resource failed.
type MsgLoadFailed struct {
	Resource string
	Err      error
}

// MsgRetryScheduled signals that a failed request will be retried.
type MsgRetryScheduled struct {
	Method   string
	Endpoint string
	Attempt  int
	Delay    time.Duration
	Err      error
}

// MsgAccessTokenRejected signals that the access token was rejected (401).
type MsgAccessTokenRejected struct{ Endpoint string }

// MsgTokenRefreshedRetrying signals that the token was refreshed and the
// request is being replayed.
type MsgTokenRefreshedRetrying struct{ Endpoint string }

// MsgRefreshFailed signals that the refresh call failed and tokens were
// cleared.
type MsgRefreshFailed struct{ Err error }

// MsgReAuthRequired signals that the session is gone and a new login starts.
type MsgReAuthRequired struct{}

// MsgUploading signals that a file upload started.
type MsgUploading struct{ Name string }

// MsgUploadDone signals that a file upload finished.
type MsgUploadDone struct {
	Name string
	URL  string
}

// MsgDone signals successful completion of the session.
type MsgDone struct{ Summary Summary }

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
