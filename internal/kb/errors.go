package kb

import "errors"

// ErrSyncInProgress is returned when a sync is requested while another one
// is still running. Only one sync may run at a time.
var ErrSyncInProgress = errors.New("kb: sync already in progress")
